package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"

	"github.com/dagwatch/dagwatch/internal/platform/logging"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"

	systemPrompt = "You are a sports data expert. Return only valid JSON."
)

// The model is constrained to a fixed JSON shape. Only fighters from
// Dagestan, Russia may set isDagestani; other Russian regions (Chechnya
// included) must not.
const promptTemplate = `Given the professional MMA fighter name %q, determine their country and state/region of origin.

For Russian fighters, specify whether they are from Dagestan, Chechnya, or another specific region.
For fighters from other countries, include the state/region if it is notable.

Return ONLY this JSON format:
{
  "country": "<country name>",
  "state": "<state/region name or null>",
  "isDagestani": true or false
}

Set "isDagestani" to true ONLY if the fighter is specifically from Dagestan, Russia.
Use null for state if the region is unknown or not notable.

If you are not sure, use:
{
  "country": "Unknown",
  "state": null,
  "isDagestani": false
}

Examples:
- Khabib Nurmagomedov -> {"country": "Russia", "state": "Dagestan", "isDagestani": true}
- Islam Makhachev -> {"country": "Russia", "state": "Dagestan", "isDagestani": true}
- Petr Yan -> {"country": "Russia", "state": null, "isDagestani": false}
- Conor McGregor -> {"country": "Ireland", "state": null, "isDagestani": false}
- Khamzat Chimaev -> {"country": "Russia", "state": "Chechnya", "isDagestani": false}`

var errOpenAITransient = crerr.New("openai transient failure")

// Classification is the parsed response shape for one fighter.
type Classification struct {
	Country     string  `json:"country"`
	State       *string `json:"state"`
	IsDagestani bool    `json:"isDagestani"`
}

type ClientConfig struct {
	HTTPClient  *http.Client
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
	Logger      *logging.Logger
}

type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	maxAttempts int
	retryDelay  time.Duration
	logger      *logging.Logger
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	// A caller-supplied client is used as-is; timeout defaults apply only
	// to the client constructed here.
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}

	return &Client{
		httpClient:  httpClient,
		baseURL:     baseURL,
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       model,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		logger:      logger,
	}
}

// Enabled reports whether a credential is configured. Callers degrade to a
// deterministic fallback when it is not.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *formatSpec   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type formatSpec struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ClassifyFighter issues one structured classification request for a
// fighter name.
func (c *Client) ClassifyFighter(ctx context.Context, name string) (Classification, error) {
	if !c.Enabled() {
		return Classification{}, fmt.Errorf("openai credential is not configured")
	}

	body, err := sonic.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf(promptTemplate, name)},
		},
		ResponseFormat: &formatSpec{Type: "json_object"},
	})
	if err != nil {
		return Classification{}, fmt.Errorf("marshal classification request: %w", err)
	}

	raw, err := c.executeRequest(ctx, c.baseURL+"/chat/completions", body)
	if err != nil {
		return Classification{}, err
	}

	var resp chatResponse
	if err := sonic.Unmarshal(raw, &resp); err != nil {
		return Classification{}, fmt.Errorf("decode completion payload: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Classification{}, fmt.Errorf("completion payload has no choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	var parsed Classification
	if err := sonic.Unmarshal([]byte(content), &parsed); err != nil {
		return Classification{}, fmt.Errorf("decode classification %q: %w", abbreviate(content), err)
	}
	if strings.TrimSpace(parsed.Country) == "" {
		parsed.Country = "Unknown"
	}
	if parsed.State != nil && strings.TrimSpace(*parsed.State) == "" {
		parsed.State = nil
	}
	return parsed, nil
}

func (c *Client) executeRequest(ctx context.Context, fullURL string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, strings.NewReader(string(body)))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("content-type", "application/json")
		req.Header.Set("authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: send request: %s", errOpenAITransient, redactCredential(err.Error(), c.apiKey))
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("%w: read response body: %v", errOpenAITransient, readErr)
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return raw, nil
			case isRetryableStatus(resp.StatusCode):
				lastErr = fmt.Errorf("%w: provider status=%d body=%s", errOpenAITransient, resp.StatusCode, abbreviate(string(raw)))
			default:
				return nil, fmt.Errorf("provider status=%d body=%s", resp.StatusCode, abbreviate(string(raw)))
			}
		}

		if attempt == c.maxAttempts-1 {
			break
		}
		// Linear backoff: one delay after the first failure, two after the
		// second.
		timer := time.NewTimer(time.Duration(attempt+1) * c.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("provider request failed")
	}
	c.logger.WarnContext(ctx, "openai request failed", "error", lastErr)
	return nil, lastErr
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func redactCredential(value, key string) string {
	if key == "" {
		return value
	}
	return strings.ReplaceAll(value, key, "REDACTED")
}

func abbreviate(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > 256 {
		return body[:256] + "..."
	}
	return body
}
