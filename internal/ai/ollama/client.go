// Package ollama implements ai.Backend against a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/marcus302/aanvraagapp/internal/ai"
)

const (
	ProviderName = "ollama"

	DefaultBaseURL        = "http://localhost:11434"
	DefaultModel          = "reader-lm:1.5b"
	DefaultEmbeddingModel = "embeddinggemma:300m"
	DefaultTimeout        = 5 * time.Minute

	// reader-lm needs a large context window to hold a full web page.
	defaultNumCtx = 32768

	documentPrefix = "title: none | text: "
	queryPrefix    = "task: search result | query: "
)

var _ ai.Backend = (*Client)(nil)

// Config holds configuration for the Ollama backend.
type Config struct {
	BaseURL        string
	Model          string
	EmbeddingModel string
	Timeout        time.Duration
}

type Client struct {
	client         *http.Client
	baseURL        string
	model          string
	embeddingModel string
	logger         *zap.Logger
}

type generateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	Stream  bool     `json:"stream"`
	Options *options `json:"options,omitempty"`
}

type options struct {
	NumCtx int `json:"num_ctx,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// New creates an Ollama backend. Empty config fields fall back to defaults.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		client:         &http.Client{Timeout: cfg.Timeout},
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		logger:         logger,
	}
}

func (c *Client) Name() string  { return ProviderName }
func (c *Client) Model() string { return c.model }

// Generate produces free text. Ollama cannot enforce a response schema, so a
// non-nil schema fails with ai.ErrUnsupportedCapability.
func (c *Client) Generate(ctx context.Context, prompt string, schema *ai.Schema) (string, error) {
	if schema != nil {
		return "", ai.Unsupported(ProviderName, "structured output")
	}

	reqBody := generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Options: &options{NumCtx: defaultNumCtx},
	}

	var genResp generateResponse
	if err := c.post(ctx, "/api/generate", reqBody, &genResp); err != nil {
		return "", err
	}

	output := strings.TrimSpace(genResp.Response)
	if output == "" {
		return "", errors.New("ollama returned empty response")
	}
	return output, nil
}

func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	inputs := make([]string, len(texts))
	for i, text := range texts {
		inputs[i] = documentPrefix + text
	}
	return c.embed(ctx, inputs)
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.embed(ctx, []string{queryPrefix + text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *Client) embed(ctx context.Context, inputs []string) ([][]float32, error) {
	var embedResp embedResponse
	if err := c.post(ctx, "/api/embed", embedRequest{Model: c.embeddingModel, Input: inputs}, &embedResp); err != nil {
		return nil, err
	}

	if len(embedResp.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(embedResp.Embeddings), len(inputs))
	}
	return embedResp.Embeddings, nil
}

// Ping checks that the server is reachable via /api/tags without running inference.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("ollama: failed to create ping request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("ollama request",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
	)

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("ollama error (status %d): failed to read response", resp.StatusCode)
	}
	return fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
