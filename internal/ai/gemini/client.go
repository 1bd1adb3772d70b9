package gemini

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/marcus302/aanvraagapp/internal/ai"
	"github.com/marcus302/aanvraagapp/internal/utils"
)

const (
	ProviderName = "gemini"

	DefaultModel          = "gemini-2.0-flash"
	DefaultEmbeddingModel = "gemini-embedding-001"

	defaultMaxRetries   = 3
	defaultMaxLogLength = 200
	// maxRetryDelay caps how long a quota error may ask us to wait before we give up instead.
	maxRetryDelay = 30 * time.Second

	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	taskRetrievalQuery    = "RETRIEVAL_QUERY"
)

var sleep = utils.WaitFor

var retryAfterPattern = regexp.MustCompile(`(?i)retry (?:after|in) ([0-9]+(?:\.[0-9]+)?)\s*s`)

// models is the subset of *genai.Models used by Client.
type models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

type Config struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	// MaxRetries is the total number of attempts for temporary API errors.
	MaxRetries   int
	MaxLogLength int
}

// Client is the Gemini implementation of ai.Backend.
type Client struct {
	models         models
	model          string
	embeddingModel string
	maxRetries     int
	maxLogLength   int
	logger         *zap.Logger
}

var _ ai.Backend = (*Client)(nil)

// New creates a Client configured for the Gemini API backend.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newClient(client.Models, cfg, logger), nil
}

func newClient(m models, cfg Config, logger *zap.Logger) *Client {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	embeddingModel := strings.TrimSpace(cfg.EmbeddingModel)
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	maxLogLength := cfg.MaxLogLength
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		models:         m,
		model:          model,
		embeddingModel: embeddingModel,
		maxRetries:     maxRetries,
		maxLogLength:   maxLogLength,
		logger:         logger,
	}
}

func (c *Client) Name() string { return ProviderName }

func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}

// Generate sends the prompt to Gemini. A non-nil schema switches the model to
// JSON mode with the schema enforced server-side.
func (c *Client) Generate(ctx context.Context, prompt string, schema *ai.Schema) (string, error) {
	if c == nil || c.models == nil {
		return "", errors.New("gemini client is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	var config *genai.GenerateContentConfig
	if schema != nil {
		config = &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   toGenaiSchema(schema),
		}
	}

	c.logger.Debug("gemini generate",
		zap.Int("prompt_length", len(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, c.maxLogLength)),
		zap.Bool("json_mode", schema != nil),
	)

	var resp *genai.GenerateContentResponse
	err := c.withRetry(ctx, "generate content", func() error {
		var err error
		resp, err = c.models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	output := responseText(resp)
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	c.logger.Debug("gemini response", zap.String("response_preview", utils.TruncateForLog(output, c.maxLogLength)))

	return output, nil
}

func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	return c.embed(ctx, contents, taskRetrievalDocument)
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.embed(ctx, genai.Text(text), taskRetrievalQuery)
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("gemini returned %d embeddings for one query", len(vectors))
	}
	return vectors[0], nil
}

func (c *Client) embed(ctx context.Context, contents []*genai.Content, task string) ([][]float32, error) {
	if c == nil || c.models == nil {
		return nil, errors.New("gemini client is not initialized")
	}

	dims := int32(ai.Dimensions)
	config := &genai.EmbedContentConfig{
		TaskType:             task,
		OutputDimensionality: &dims,
	}

	var resp *genai.EmbedContentResponse
	err := c.withRetry(ctx, "embed content", func() error {
		var err error
		resp, err = c.models.EmbedContent(ctx, c.embeddingModel, contents, config)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}

	if resp == nil || len(resp.Embeddings) != len(contents) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d inputs", embeddingCount(resp), len(contents))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("gemini returned an empty embedding at index %d", i)
		}
		vectors[i] = e.Values
	}

	return vectors, nil
}

func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		delay, retryable := retryDelay(err, attempt)
		if !retryable || attempt >= c.maxRetries {
			return err
		}

		c.logger.Warn("gemini request failed, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.maxRetries),
			zap.Duration("wait", delay),
			zap.Error(err),
		)

		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// retryDelay decides whether err is temporary and how long to back off.
func retryDelay(err error, attempt int) (time.Duration, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}

	backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second

	switch apiErr.Code {
	case http.StatusTooManyRequests:
		if m := retryAfterPattern.FindStringSubmatch(apiErr.Message); m != nil {
			seconds, perr := strconv.ParseFloat(m[1], 64)
			if perr == nil {
				wait := time.Duration(seconds * float64(time.Second))
				if wait > maxRetryDelay {
					return 0, false
				}
				return wait, true
			}
		}
		return backoff, true
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return backoff, true
	default:
		return 0, false
	}
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			builder.WriteString(part.Text)
		}
		if builder.Len() > 0 {
			break
		}
	}

	return strings.TrimSpace(builder.String())
}

func embeddingCount(resp *genai.EmbedContentResponse) int {
	if resp == nil {
		return 0
	}
	return len(resp.Embeddings)
}
