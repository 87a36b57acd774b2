package espn

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	validator "github.com/go-playground/validator/v10"

	"github.com/dagwatch/dagwatch/internal/domain/fight"
	"github.com/dagwatch/dagwatch/internal/platform/logging"
	"github.com/dagwatch/dagwatch/internal/platform/resilience"
	"github.com/dagwatch/dagwatch/internal/usecase"
)

const (
	defaultBaseURL    = "https://site.web.api.espn.com/apis/site/v2/sports/mma/ufc"
	defaultUserAgent  = "Mozilla/5.0"
	defaultRetryDelay = 2 * time.Second
	statusUnknown     = "unknown"
)

var errESPNTransient = crerr.New("espn transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	Timeout        time.Duration
	MaxAttempts    int
	RetryDelay     time.Duration
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

type Client struct {
	httpClient     *http.Client
	baseURL        string
	maxAttempts    int
	retryDelay     time.Duration
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight[[]byte]
	validate       *validator.Validate
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
			timeout = 20 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		maxAttempts:    maxAttempts,
		retryDelay:     retryDelay,
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout),
		circuitEnabled: breakerCfg.Enabled,
		validate:       validator.New(),
	}
}

type scoreboardEnvelope struct {
	Events []scoreboardEvent `json:"events"`
}

type scoreboardEvent struct {
	ID           any               `json:"id"`
	Name         string            `json:"name"`
	ShortName    string            `json:"shortName"`
	Date         string            `json:"date"`
	Status       statusBlock       `json:"status"`
	Competitions []competitionItem `json:"competitions"`
}

type statusBlock struct {
	Period int        `json:"period"`
	Type   statusType `json:"type"`
}

type statusType struct {
	Name   string `json:"name"`
	State  string `json:"state"`
	Detail string `json:"detail"`
}

type competitionItem struct {
	ID          any              `json:"id"`
	Status      statusBlock      `json:"status"`
	Competitors []competitorItem `json:"competitors"`
}

type competitorItem struct {
	Winner  bool        `json:"winner"`
	Athlete athleteItem `json:"athlete"`
}

type athleteItem struct {
	DisplayName string `json:"displayName"`
	Name        string `json:"name"`
}

// FetchEvents returns the currently visible event window from the provider
// scoreboard, newest data on every call.
func (c *Client) FetchEvents(ctx context.Context) ([]fight.RawEvent, error) {
	envelope, err := c.fetchScoreboard(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch scoreboard: %w", err)
	}

	events := make([]fight.RawEvent, 0, len(envelope.Events))
	for _, item := range envelope.Events {
		event := fight.RawEvent{
			ID:     stringifyID(item.ID),
			Name:   firstNonEmpty(item.Name, item.ShortName),
			Date:   item.Date,
			Status: eventStatus(item.Status),
		}
		if err := c.validate.Struct(event); err != nil {
			c.logger.WarnContext(ctx, "skip malformed scoreboard event", "event_id", event.ID, "error", err)
			continue
		}
		events = append(events, event)
	}

	c.logger.InfoContext(ctx, "fetched scoreboard events", "count", len(events))
	return events, nil
}

// FetchEventDetails resolves the fight card for one event. The provider has
// no per-event endpoint inside the scoreboard window, so the scoreboard is
// refetched and filtered; an event that fell out of the window yields an
// empty card rather than an error.
func (c *Client) FetchEventDetails(ctx context.Context, eventID string) (fight.RawEventWithCard, error) {
	if strings.TrimSpace(eventID) == "" {
		return fight.RawEventWithCard{}, fmt.Errorf("%w: event id is required", usecase.ErrInvalidInput)
	}

	envelope, err := c.fetchScoreboard(ctx)
	if err != nil {
		return fight.RawEventWithCard{}, fmt.Errorf("fetch scoreboard for event_id=%s: %w", eventID, err)
	}

	for _, item := range envelope.Events {
		if stringifyID(item.ID) != eventID {
			continue
		}

		fights := make([]fight.RawFight, 0, len(item.Competitions))
		for _, comp := range item.Competitions {
			competitors := make([]fight.RawCompetitor, 0, len(comp.Competitors))
			for _, competitor := range comp.Competitors {
				competitors = append(competitors, fight.RawCompetitor{
					Name:   firstNonEmpty(competitor.Athlete.DisplayName, competitor.Athlete.Name),
					Winner: competitor.Winner,
				})
			}
			fights = append(fights, fight.RawFight{
				ID:          stringifyID(comp.ID),
				Competitors: competitors,
				Status:      eventStatus(comp.Status),
				Method:      comp.Status.Type.Detail,
				Round:       roundFromPeriod(comp.Status.Period),
			})
		}

		return fight.RawEventWithCard{
			ID:     stringifyID(item.ID),
			Name:   firstNonEmpty(item.Name, item.ShortName),
			Date:   item.Date,
			Fights: fights,
		}, nil
	}

	c.logger.WarnContext(ctx, "event not present in scoreboard window", "event_id", eventID)
	return fight.RawEventWithCard{
		ID:     eventID,
		Name:   "Unknown Event",
		Fights: []fight.RawFight{},
	}, nil
}

func (c *Client) fetchScoreboard(ctx context.Context) (scoreboardEnvelope, error) {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "espn circuit breaker rejected request", "state", c.breaker.State())
			return scoreboardEnvelope{}, fmt.Errorf("%w: fight data provider is temporarily unavailable", usecase.ErrDependencyUnavailable)
		}
	}

	fullURL := c.baseURL + "/scoreboard"
	raw, err, _ := c.flight.Do(fullURL, func() ([]byte, error) {
		body, reqErr := c.executeRequest(ctx, fullURL)
		if c.circuitEnabled {
			if reqErr != nil && crerr.Is(reqErr, errESPNTransient) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		return body, reqErr
	})
	if err != nil {
		return scoreboardEnvelope{}, err
	}

	var envelope scoreboardEnvelope
	if err := sonic.Unmarshal(raw, &envelope); err != nil {
		return scoreboardEnvelope{}, fmt.Errorf("decode provider payload: %w", err)
	}
	return envelope, nil
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("accept", "application/json")
		req.Header.Set("user-agent", defaultUserAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: send request: %v", errESPNTransient, err)
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 6<<20))
			_ = resp.Body.Close()
			if readErr != nil {
				lastErr = fmt.Errorf("%w: read response body: %v", errESPNTransient, readErr)
			} else if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return raw, nil
			} else if isRetryableStatus(resp.StatusCode) {
				lastErr = fmt.Errorf("%w: provider status=%d body=%s", errESPNTransient, resp.StatusCode, abbreviateBody(raw))
			} else {
				return nil, fmt.Errorf("provider status=%d body=%s", resp.StatusCode, abbreviateBody(raw))
			}
		}

		if attempt == c.maxAttempts-1 {
			break
		}
		timer := time.NewTimer(c.retryDelay)
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
	c.logger.WarnContext(ctx, "espn request failed", "url", fullURL, "error", lastErr)
	return nil, lastErr
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func eventStatus(status statusBlock) string {
	return firstNonEmpty(status.Type.Name, status.Type.State, statusUnknown)
}

func roundFromPeriod(period int) string {
	if period <= 0 {
		return ""
	}
	return strconv.Itoa(period)
}

// stringifyID tolerates providers flipping between numeric and string ids.
func stringifyID(raw any) string {
	switch typed := raw.(type) {
	case string:
		return strings.TrimSpace(typed)
	case float64:
		return strconv.FormatInt(int64(typed), 10)
	case int64:
		return strconv.FormatInt(typed, 10)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(typed))
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func abbreviateBody(raw []byte) string {
	body := strings.TrimSpace(string(raw))
	if len(body) > 512 {
		return body[:512] + "..."
	}
	return body
}
