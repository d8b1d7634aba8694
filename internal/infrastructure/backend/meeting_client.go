package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"interviewroom/internal/core/domain"
	"interviewroom/pkg/circuitbreaker"
	"interviewroom/pkg/retry"
	"interviewroom/pkg/tracing"
	"interviewroom/pkg/utils"

	"go.uber.org/zap"
)

// errPermanent marks answers that another attempt cannot change (4xx).
var errPermanent = errors.New("permanent backend error")

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s %s returned HTTP %d: %s", e.Method, e.Path, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusNotFound {
		return domain.ErrMeetingNotFound
	}
	if e.Code >= 400 && e.Code < 500 && e.Code != http.StatusTooManyRequests {
		return errPermanent
	}
	return nil
}

type Options struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
	Retry    retry.Config
	Breaker  circuitbreaker.Config
}

// MeetingClient reads meetings from the platform backend over its REST API.
type MeetingClient struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	retry      retry.Config
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.SugaredLogger
}

func NewMeetingClient(opts Options, logger *zap.SugaredLogger) (*MeetingClient, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend base url %q", opts.BaseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	retryCfg := opts.Retry
	retryCfg.NonRetryableErrors = append(retryCfg.NonRetryableErrors, errPermanent, domain.ErrMeetingNotFound, circuitbreaker.ErrOpen)

	breakerCfg := opts.Breaker
	breakerCfg.IsFailure = func(err error) bool {
		return !errors.Is(err, errPermanent) && !errors.Is(err, domain.ErrMeetingNotFound)
	}

	c := &MeetingClient{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiToken:   opts.APIToken,
		httpClient: &http.Client{Timeout: opts.Timeout},
		retry:      retryCfg,
		breaker:    circuitbreaker.New("meeting-backend", breakerCfg),
		logger:     logger,
	}
	c.breaker.OnStateChange(func(name string, from, to circuitbreaker.State) {
		logger.Warnw("Backend circuit breaker changed state",
			"breaker", name,
			"from", from.String(),
			"to", to.String(),
		)
	})
	return c, nil
}

type listResponse struct {
	Meetings []*domain.Meeting `json:"meetings"`
}

type leaveRequest struct {
	UserID domain.UserID `json:"user_id"`
	Reason string        `json:"reason"`
}

func (c *MeetingClient) GetMeeting(ctx context.Context, id domain.MeetingID) (*domain.Meeting, error) {
	var m domain.Meeting
	if err := c.do(ctx, http.MethodGet, "/meetings/"+url.PathEscape(string(id)), nil, &m); err != nil {
		return nil, err
	}
	if m.ID == "" {
		m.ID = id
	}
	return &m, nil
}

func (c *MeetingClient) ListMeetings(ctx context.Context) ([]*domain.Meeting, error) {
	var resp listResponse
	if err := c.do(ctx, http.MethodGet, "/meetings", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Meetings, nil
}

func (c *MeetingClient) NotifyLeave(ctx context.Context, meetingID domain.MeetingID, userID domain.UserID, reason string) error {
	body := leaveRequest{UserID: userID, Reason: reason}
	return c.do(ctx, http.MethodPost, "/meetings/"+url.PathEscape(string(meetingID))+"/leave", body, nil)
}

// HealthCheck fails while the circuit breaker is open.
func (c *MeetingClient) HealthCheck(ctx context.Context) error {
	if c.breaker.State() == circuitbreaker.StateOpen {
		return fmt.Errorf("meeting backend: %w", circuitbreaker.ErrOpen)
	}
	return nil
}

func (c *MeetingClient) do(ctx context.Context, method, path string, in, out interface{}) error {
	ctx, span := tracing.TraceBackendRequest(ctx, method, path)

	err := retry.Retry(ctx, c.retry, func() error {
		return c.breaker.Execute(ctx, func(ctx context.Context) error {
			return c.once(ctx, method, path, in, out)
		})
	})
	if errors.Is(err, domain.ErrMeetingNotFound) {
		tracing.EndSpan(span, nil)
		return domain.ErrMeetingNotFound
	}
	tracing.EndSpan(span, err)
	return err
}

func (c *MeetingClient) once(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to serialize request: %w", errors.Join(err, errPermanent))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create backend request: %w", errors.Join(err, errPermanent))
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read backend response: %w", err)
	}

	c.logger.Debugw("Backend request finished",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: utils.Truncate(string(data), 256)}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse backend response: %w", errors.Join(err, errPermanent))
	}
	return nil
}

