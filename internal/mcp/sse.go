package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fleetmind/fleetmind-agent/internal/httpkit"
)

// DefaultPollTimeout bounds how long Send waits on the event stream for
// the result of a request the server accepted asynchronously (HTTP 202).
const DefaultPollTimeout = 30 * time.Second

// SSEConfig configures an SSE MCP transport.
type SSEConfig struct {
	// URL is the base URL of the MCP server (no trailing path). The
	// transport derives the /sse and /messages/ endpoints from it.
	URL string

	// APIKey authenticates every request as a query parameter, matching
	// the server's SSE auth scheme.
	APIKey string

	// PollTimeout overrides DefaultPollTimeout when positive.
	PollTimeout time.Duration

	// Logger is the structured logger for transport diagnostics.
	Logger *slog.Logger
}

// SSETransport communicates with an MCP server over the SSE transport:
// a GET to /sse establishes a session and yields the message endpoint,
// JSON-RPC requests are POSTed to /messages/, and responses the server
// defers (HTTP 202) are collected from the event stream.
type SSETransport struct {
	baseURL     string
	apiKey      string
	pollTimeout time.Duration
	logger      *slog.Logger

	// streamClient has no overall timeout; SSE streams are long-lived
	// and are bounded per-request via context instead.
	streamClient *http.Client
	postClient   *http.Client

	mu        sync.RWMutex
	sessionID string
}

// NewSSETransport creates an SSE transport for the given config. No
// network activity happens until the first Send (or Connect).
func NewSSETransport(cfg SSEConfig) *SSETransport {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}

	return &SSETransport{
		baseURL:      strings.TrimRight(cfg.URL, "/"),
		apiKey:       cfg.APIKey,
		pollTimeout:  pollTimeout,
		logger:       logger,
		streamClient: httpkit.NewClient(httpkit.WithTimeout(0)),
		postClient:   httpkit.NewClient(),
	}
}

// SessionID returns the current server-assigned session ID, or "" if no
// session has been established yet.
func (t *SSETransport) SessionID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sessionID
}

// Connect opens the event stream and reads until the server announces
// the message endpoint carrying our session ID. The stream is closed
// once the session is known; result polling reopens it on demand.
func (t *SSETransport) Connect(ctx context.Context) error {
	t.mu.RLock()
	established := t.sessionID != ""
	t.mu.RUnlock()
	if established {
		return nil
	}

	resp, err := t.openStream(ctx, "")
	if err != nil {
		return err
	}
	defer httpkit.DrainAndClose(resp.Body, 1<<16)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, ok := sseData(scanner.Text())
		if !ok {
			continue
		}
		if sid := extractSessionID(data); sid != "" {
			t.mu.Lock()
			t.sessionID = sid
			t.mu.Unlock()
			t.logger.Debug("SSE session established", "session_id", sid)
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read event stream: %w", err)
	}

	return fmt.Errorf("event stream ended before announcing a session")
}

// Send delivers a JSON-RPC request to the message endpoint. A 200 carries
// the response inline; a 202 means the result arrives on the event
// stream, so Send polls the stream for a message with a matching id.
func (t *SSETransport) Send(ctx context.Context, req *Request) (*Response, error) {
	if err := t.Connect(ctx); err != nil {
		return nil, fmt.Errorf("establish session: %w", err)
	}

	httpResp, err := t.post(ctx, req)
	if err != nil {
		return nil, err
	}

	switch httpResp.StatusCode {
	case http.StatusOK:
		defer httpkit.DrainAndClose(httpResp.Body, 1<<20)
		var resp Response
		if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
			return nil, fmt.Errorf("unmarshal response: %w", err)
		}
		return &resp, nil

	case http.StatusAccepted:
		httpkit.DrainAndClose(httpResp.Body, 1<<16)
		return t.pollResult(ctx, req.ID)

	default:
		defer httpResp.Body.Close()
		errBody := httpkit.ReadErrorBody(httpResp.Body, 1<<20)
		return nil, fmt.Errorf("MCP server returned %d: %s", httpResp.StatusCode, errBody)
	}
}

// Notify sends a JSON-RPC notification. The server acknowledges with
// 200 or 202; no payload comes back.
func (t *SSETransport) Notify(ctx context.Context, notif *Notification) error {
	if err := t.Connect(ctx); err != nil {
		return fmt.Errorf("establish session: %w", err)
	}

	httpResp, err := t.post(ctx, notif)
	if err != nil {
		return err
	}
	defer httpkit.DrainAndClose(httpResp.Body, 1<<16)

	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusAccepted {
		errBody := httpkit.ReadErrorBody(httpResp.Body, 1<<20)
		return fmt.Errorf("MCP server returned %d for notification: %s", httpResp.StatusCode, errBody)
	}

	return nil
}

// Close drops the session and any pooled connections.
func (t *SSETransport) Close() error {
	t.mu.Lock()
	t.sessionID = ""
	t.mu.Unlock()
	t.streamClient.CloseIdleConnections()
	t.postClient.CloseIdleConnections()
	return nil
}

// post marshals payload and POSTs it to the message endpoint.
func (t *SSETransport) post(ctx context.Context, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	t.mu.RLock()
	sid := t.sessionID
	t.mu.RUnlock()

	q := url.Values{}
	q.Set("session_id", sid)
	q.Set("api_key", t.apiKey)
	msgURL := t.baseURL + "/messages/?" + q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, msgURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := t.postClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("POST to %s/messages/: %w", t.baseURL, err)
	}
	return httpResp, nil
}

// pollResult reopens the event stream and scans it for the response
// matching id, bounded by the poll timeout.
func (t *SSETransport) pollResult(ctx context.Context, id string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, t.pollTimeout)
	defer cancel()

	t.mu.RLock()
	sid := t.sessionID
	t.mu.RUnlock()

	resp, err := t.openStream(ctx, sid)
	if err != nil {
		return nil, err
	}
	defer httpkit.DrainAndClose(resp.Body, 1<<16)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("wait for result of request %s: %w", id, err)
		}
		data, ok := sseData(scanner.Text())
		if !ok {
			continue
		}
		var rpcResp Response
		if err := json.Unmarshal([]byte(data), &rpcResp); err != nil {
			continue
		}
		if rpcResp.ID == id {
			return &rpcResp, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read event stream: %w", err)
	}

	return nil, fmt.Errorf("event stream ended without a result for request %s", id)
}

// openStream issues the GET that opens an SSE stream. sessionID may be
// empty for the initial handshake.
func (t *SSETransport) openStream(ctx context.Context, sessionID string) (*http.Response, error) {
	q := url.Values{}
	q.Set("api_key", t.apiKey)
	if sessionID != "" {
		q.Set("session_id", sessionID)
	}
	sseURL := t.baseURL + "/sse?" + q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, sseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create HTTP request: %w", err)
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	httpResp, err := t.streamClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("open event stream: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		defer httpResp.Body.Close()
		errBody := httpkit.ReadErrorBody(httpResp.Body, 1<<20)
		return nil, fmt.Errorf("event stream returned %d: %s", httpResp.StatusCode, errBody)
	}

	return httpResp, nil
}

// sseData extracts the payload of an SSE "data:" line. Event-name lines,
// comments, and blank separators return ok=false.
func sseData(line string) (string, bool) {
	if !strings.HasPrefix(line, "data:") {
		return "", false
	}
	data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if data == "" {
		return "", false
	}
	return data, true
}

// extractSessionID pulls the session ID out of an endpoint announcement.
// Servers send the message endpoint either as a bare path
// ("/messages/?session_id=abc") or wrapped in a JSON object with an
// "endpoint" field; both carry session_id as a query parameter.
func extractSessionID(data string) string {
	endpoint := data
	var wrapped struct {
		Endpoint string `json:"endpoint"`
	}
	if err := json.Unmarshal([]byte(data), &wrapped); err == nil && wrapped.Endpoint != "" {
		endpoint = wrapped.Endpoint
	}

	_, after, found := strings.Cut(endpoint, "session_id=")
	if !found {
		return ""
	}
	if i := strings.IndexAny(after, "&\" }"); i >= 0 {
		after = after[:i]
	}
	return after
}
