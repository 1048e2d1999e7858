package api

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/fleetmind/fleetmind-agent/internal/memory"
)

// markdown renders conversation transcripts. The table extension
// matters: assistant messages embed pipe-delimited result tables.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Table),
)

const transcriptPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>FleetMind Transcript</title>
<style>
body { font-family: sans-serif; max-width: 56rem; margin: 2rem auto; padding: 0 1rem; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: 0.25rem 0.5rem; }
blockquote { color: #555; border-left: 3px solid #ccc; margin-left: 0; padding-left: 1rem; }
</style>
</head>
<body>
%s
</body>
</html>
`

// renderTranscriptHTML formats a conversation as a standalone HTML
// page: the rolling summary (when present) followed by the messages.
func renderTranscriptHTML(history []memory.Message, summary string) ([]byte, error) {
	var md strings.Builder
	md.WriteString("# Conversation\n\n")

	if summary != "" {
		md.WriteString("> **Earlier conversation (summarized):** ")
		md.WriteString(summary)
		md.WriteString("\n\n")
	}

	for _, msg := range history {
		fmt.Fprintf(&md, "**%s:**\n\n%s\n\n---\n\n", strings.ToUpper(msg.Role), msg.Content)
	}

	var body bytes.Buffer
	if err := markdown.Convert([]byte(md.String()), &body); err != nil {
		return nil, fmt.Errorf("convert transcript markdown: %w", err)
	}

	return []byte(fmt.Sprintf(transcriptPage, body.String())), nil
}
