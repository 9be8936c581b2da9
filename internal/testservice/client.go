package testservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ai-evaluator/testtaker/internal/model"
	"github.com/ai-evaluator/testtaker/internal/validator"
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 4 << 20

// Client talks to the platform's REST Test Service.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log.With().Str("component", "test_service").Logger() }
}

// New creates a Client for baseURL (e.g. http://localhost:5000/api).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithBearer returns a copy of the client that authenticates as token.
func (c *Client) WithBearer(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Login exchanges credentials for a user record and access token.
func (c *Client) Login(ctx context.Context, username, password string) (*model.LoginResponse, error) {
	var resp model.LoginResponse
	req := model.LoginRequest{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AvailableTests lists the tests students may take.
func (c *Client) AvailableTests(ctx context.Context) ([]model.Test, error) {
	var resp model.TestsResponse
	if err := c.do(ctx, http.MethodGet, "/tests/available", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tests, nil
}

// GetTest fetches one test definition.
func (c *Client) GetTest(ctx context.Context, testID string) (*model.Test, error) {
	var resp model.TestResponse
	if err := c.do(ctx, http.MethodGet, "/tests/"+url.PathEscape(testID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Test, nil
}

// StartTest fetches the test and opens a server-side attempt for studentID.
func (c *Client) StartTest(ctx context.Context, testID, studentID string) (*model.StartTestResponse, error) {
	var resp model.StartTestResponse
	path := "/tests/" + url.PathEscape(testID) + "/start"
	if err := c.do(ctx, http.MethodPost, path, model.StartTestRequest{StudentID: studentID}, &resp); err != nil {
		return nil, err
	}

	if fields := validator.Check(resp.Test); fields != nil {
		return nil, fmt.Errorf("invalid test definition: %s", validator.Summary(fields))
	}
	if resp.Attempt.ID == "" {
		return nil, errors.New("invalid start response: missing attempt id")
	}
	return &resp, nil
}

// SubmitAttempt sends the full answer list for attemptID and returns the graded attempt.
func (c *Client) SubmitAttempt(ctx context.Context, attemptID string, answers []model.Answer) (*model.Attempt, error) {
	var resp model.SubmitTestResponse
	path := "/attempts/" + url.PathEscape(attemptID) + "/submit"
	if answers == nil {
		answers = []model.Answer{}
	}
	if err := c.do(ctx, http.MethodPost, path, model.SubmitTestRequest{Answers: answers}, &resp); err != nil {
		return nil, err
	}
	return &resp.Attempt, nil
}

// StudentAttempts lists every attempt made by studentID.
func (c *Client) StudentAttempts(ctx context.Context, studentID string) ([]model.Attempt, error) {
	var resp model.AttemptsResponse
	if err := c.do(ctx, http.MethodGet, "/students/"+url.PathEscape(studentID)+"/attempts", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Attempts, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	reqID := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Str("request_id", reqID).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("Test service call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Path: path}
		var eb model.ErrorBody
		if json.Unmarshal(raw, &eb) == nil {
			apiErr.Message = eb.Error
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
