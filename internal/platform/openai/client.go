package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/F-O-T/contentagen-nx-sub000/internal/observability"
	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
	"github.com/F-O-T/contentagen-nx-sub000/internal/pkg/httpx"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/promptstyle"
)

// Format selects the output mode of Generate.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Client is the LLM collaborator every stage talks to.
type Client interface {
	Generate(ctx context.Context, system, user string, format Format) (string, error)
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

type Config struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	EmbedModel  string  `yaml:"embed_model"`
	Temperature float64 `yaml:"temperature"`
	// DisableTemperature omits the parameter for models that reject it.
	DisableTemperature bool          `yaml:"disable_temperature"`
	Timeout            time.Duration `yaml:"timeout"`
	MaxRetries         int           `yaml:"max_retries"`
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	embedModel string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration

	temperature *float64

	// Models that rejected temperature once are remembered and sent without it.
	noTempMu   sync.RWMutex
	noTempSeen map[string]bool
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4.1-mini"
	}
	embed := strings.TrimSpace(cfg.EmbedModel)
	if embed == "" {
		embed = "text-embedding-3-small"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	var temp *float64
	if !cfg.DisableTemperature {
		t := cfg.Temperature
		temp = &t
	}

	return &client{
		log:         log.With("service", "OpenAIClient"),
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		embedModel:  embed,
		httpClient:  &http.Client{Timeout: timeout},
		maxRetries:  maxRetries,
		backoff:     time.Second,
		temperature: temp,
		noTempSeen:  map[string]bool{},
	}, nil
}

type openAIHTTPError struct {
	StatusCode int
	Body       string
}

func (e *openAIHTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *openAIHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func isUnsupportedTemperature(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "temperature") {
		return false
	}
	for _, frag := range []string{"unsupported parameter", "unknown parameter", "not supported", "does not support", "unsupported_value", "only the default"} {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &openAIHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

// do retries transport failures with exponential backoff, honoring
// Retry-After. Errors that survive it are tagged: transient when a later
// attempt could succeed, fatal for other 4xx responses.
func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	backoff := c.backoff
	start := time.Now()
	model := modelOf(body)
	for attempt := 0; ; attempt++ {
		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			if metrics := observability.Current(); metrics != nil {
				metrics.ObserveLLMRequest(model, path, statusOf(resp, nil), time.Since(start))
			}
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("%w: openai decode: %v", perrors.ErrMalformedOutput, uErr)
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var sc httpx.HTTPStatusCoder
		if perrors.As(err, &sc) && !httpx.IsRetryableHTTPStatus(sc.HTTPStatusCode()) {
			if metrics := observability.Current(); metrics != nil {
				metrics.ObserveLLMRequest(model, path, statusOf(resp, err), time.Since(start))
			}
			return fmt.Errorf("%w: %v", perrors.ErrFatal, err)
		}
		if attempt >= c.maxRetries {
			if metrics := observability.Current(); metrics != nil {
				metrics.ObserveLLMRequest(model, path, statusOf(resp, err), time.Since(start))
			}
			return perrors.Transient("openai "+path, err)
		}

		sleepFor := httpx.Jitter(httpx.RetryAfterDuration(resp, backoff, 30*time.Second), 0.2)
		c.log.Warn("OpenAI request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		if err := httpx.Sleep(ctx, sleepFor); err != nil {
			return err
		}
		backoff *= 2
	}
}

func modelOf(body any) string {
	switch b := body.(type) {
	case *responsesRequest:
		return b.Model
	case embeddingsRequest:
		return b.Model
	}
	return ""
}

// statusOf labels a request outcome by HTTP status, or "error" when no
// response arrived.
func statusOf(resp *http.Response, err error) string {
	if resp != nil {
		return strconv.Itoa(resp.StatusCode)
	}
	if err != nil {
		return "error"
	}
	return "0"
}

// -------------------- Responses API --------------------

type inputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesRequest struct {
	Model       string         `json:"model"`
	Input       []inputMessage `json:"input"`
	Text        *textOptions   `json:"text,omitempty"`
	Temperature *float64       `json:"temperature,omitempty"`
}

type textOptions struct {
	Format map[string]any `json:"format"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Refusal string `json:"refusal,omitempty"`
}

func extractOutputText(resp responsesResponse) string {
	var out strings.Builder
	for _, item := range resp.Output {
		if item.Type == "message" && item.Role == "assistant" {
			for _, c := range item.Content {
				if c.Type == "output_text" && c.Text != "" {
					out.WriteString(c.Text)
				}
			}
		}
	}
	return out.String()
}

func (c *client) Generate(ctx context.Context, system, user string, format Format) (string, error) {
	if format != FormatJSON {
		format = FormatText
	}
	req := responsesRequest{
		Model: c.model,
		Input: []inputMessage{
			{Role: "system", Content: promptstyle.ApplySystem(system, string(format))},
			{Role: "user", Content: user},
		},
	}
	if format == FormatJSON {
		req.Text = &textOptions{Format: map[string]any{"type": "json_object"}}
	}
	if c.temperature != nil && !c.modelRejectsTemperature(req.Model) {
		req.Temperature = c.temperature
	}

	var resp responsesResponse
	err := c.do(ctx, http.MethodPost, "/v1/responses", &req, &resp)
	if err != nil && req.Temperature != nil && isUnsupportedTemperature(err) {
		c.noteRejectsTemperature(req.Model)
		req.Temperature = nil
		err = c.do(ctx, http.MethodPost, "/v1/responses", &req, &resp)
	}
	if err != nil {
		return "", err
	}
	if resp.Refusal != "" {
		return "", fmt.Errorf("%w: model refused: %s", perrors.ErrFatal, resp.Refusal)
	}
	text := extractOutputText(resp)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: no output_text in response", perrors.ErrMalformedOutput)
	}
	return text, nil
}

func (c *client) modelRejectsTemperature(model string) bool {
	c.noTempMu.RLock()
	defer c.noTempMu.RUnlock()
	return c.noTempSeen[model]
}

func (c *client) noteRejectsTemperature(model string) {
	c.noTempMu.Lock()
	c.noTempSeen[model] = true
	c.noTempMu.Unlock()
	c.log.Info("Model rejects temperature; omitting from now on", "model", model)
}

// -------------------- Embeddings --------------------

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (c *client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	clean := make([]string, len(inputs))
	for i := range inputs {
		s := strings.TrimSpace(inputs[i])
		if s == "" {
			s = " "
		}
		clean[i] = s
	}

	var resp embeddingsResponse
	if err := c.do(ctx, http.MethodPost, "/v1/embeddings", embeddingsRequest{Model: c.embedModel, Input: clean}, &resp); err != nil {
		return nil, err
	}

	out := make([][]float32, len(clean))
	for pos, d := range resp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(out) || out[idx] != nil {
			idx = pos
		}
		if idx >= len(out) {
			continue
		}
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		out[idx] = vec
	}
	for i := range out {
		if len(out[i]) == 0 {
			return nil, perrors.Transient("openai embeddings", fmt.Errorf("missing embedding %d of %d (model=%s)", i, len(out), c.embedModel))
		}
	}
	return out, nil
}
