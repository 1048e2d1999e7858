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

// OllamaConfig configures a local Ollama oracle client.
type OllamaConfig struct {
	BaseURL string
	Model   string
	Options Options

	// Timeout bounds a single generation call. Zero means 5 minutes;
	// local models are slow to load.
	Timeout time.Duration

	Logger *slog.Logger
}

// OllamaClient is an Oracle backed by a local Ollama server. It exists
// so the agent can run fully offline when no Gemini key is configured.
type OllamaClient struct {
	baseURL    string
	model      string
	options    Options
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOllamaClient creates an Ollama oracle client.
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	options := cfg.Options
	if options == (Options{}) {
		options = DefaultOptions()
	}

	return &OllamaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      cfg.Model,
		options:    options,
		httpClient: httpkit.NewClient(httpkit.WithTimeout(timeout)),
		logger:     logger.With("oracle", "ollama", "model", cfg.Model),
	}
}

// generateRequest is the request format for the Ollama generate API.
type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options *ollamaOptions `json:"options,omitempty"`
}

// ollamaOptions are model parameters.
type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	TopK        int     `json:"top_k,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// generateResponse is the response from the Ollama generate API.
type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`

	// Usage stats (when done=true)
	TotalDuration   int64 `json:"total_duration,omitempty"`
	PromptEvalCount int   `json:"prompt_eval_count,omitempty"`
	EvalCount       int   `json:"eval_count,omitempty"`
}

// Generate sends a non-streaming generate request to Ollama.
func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	req := generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Options: &ollamaOptions{
			Temperature: c.options.Temperature,
			TopP:        c.options.TopP,
			TopK:        c.options.TopK,
			NumPredict:  c.options.MaxOutputTokens,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	defer httpkit.DrainAndClose(httpResp.Body, 1<<20)

	if httpResp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(httpResp.Body, 1<<20)
		return "", fmt.Errorf("ollama API error %d: %s", httpResp.StatusCode, errBody)
	}

	var resp generateResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	c.logger.Debug("generation complete",
		"duration", time.Since(start).Truncate(time.Millisecond),
		"eval_count", resp.EvalCount,
	)

	return resp.Response, nil
}

// Ping checks if the Ollama server is reachable.
func (c *OllamaClient) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("ollama ping: %w", err)
	}
	defer httpkit.DrainAndClose(httpResp.Body, 1<<16)

	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama ping returned %d", httpResp.StatusCode)
	}
	return nil
}
