package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fleetmind/fleetmind-agent/internal/httpkit"
)

// defaultGeminiBaseURL is the Generative Language API endpoint.
const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiConfig configures a Gemini oracle client.
type GeminiConfig struct {
	APIKey  string
	Model   string
	Options Options

	// BaseURL overrides the API endpoint, for tests.
	BaseURL string

	// Timeout bounds a single generation call. Zero means 120 seconds.
	Timeout time.Duration

	Logger *slog.Logger
}

// GeminiClient is an Oracle backed by the Gemini generateContent API.
type GeminiClient struct {
	baseURL    string
	apiKey     string
	model      string
	options    Options
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGeminiClient creates a Gemini oracle client.
func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	options := cfg.Options
	if options == (Options{}) {
		options = DefaultOptions()
	}

	return &GeminiClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		options:    options,
		httpClient: httpkit.NewClient(httpkit.WithTimeout(timeout)),
		logger:     logger.With("oracle", "gemini", "model", cfg.Model),
	}
}

// generateContentRequest is the generateContent request body.
type generateContentRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// generateContentResponse is the subset of the response we consume.
type generateContentResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate sends the prompt to the generateContent endpoint and returns
// the concatenated text of the first candidate.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := generateContentRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: generationConfig{
			Temperature:     c.options.Temperature,
			TopP:            c.options.TopP,
			TopK:            c.options.TopK,
			MaxOutputTokens: c.options.MaxOutputTokens,
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer httpkit.DrainAndClose(httpResp.Body, 1<<20)

	if httpResp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(httpResp.Body, 1<<20)
		return "", fmt.Errorf("gemini API error %d: %s", httpResp.StatusCode, errBody)
	}

	var resp generateContentResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if resp.Error != nil {
		return "", fmt.Errorf("gemini API error %d (%s): %s", resp.Error.Code, resp.Error.Status, resp.Error.Message)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	c.logger.Debug("generation complete",
		"duration", time.Since(start).Truncate(time.Millisecond),
		"finish_reason", resp.Candidates[0].FinishReason,
		"chars", sb.Len(),
	)

	return sb.String(), nil
}

// Ping verifies the model is reachable by fetching its metadata.
func (c *GeminiClient) Ping(ctx context.Context) error {
	url := fmt.Sprintf("%s/models/%s?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("gemini ping: %w", err)
	}
	defer httpkit.DrainAndClose(httpResp.Body, 1<<16)

	if httpResp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(httpResp.Body, 1<<20)
		return fmt.Errorf("gemini ping returned %d: %s", httpResp.StatusCode, errBody)
	}
	return nil
}
