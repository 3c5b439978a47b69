// Package examclient talks to the exam API on behalf of a candidate session.
package examclient

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

	"github.com/campushire/skillcheck/internal/model"
	"github.com/campushire/skillcheck/internal/response"
	"github.com/google/uuid"
)

var (
	ErrMissingToken = errors.New("authentication token missing")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)

// APIError is a non-2xx reply carrying the server's error body.
type APIError struct {
	Status    int
	Code      response.ErrCode
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("exam api %d", e.Status)
	if e.Message != "" {
		msg = fmt.Sprintf("exam api %d %s: %s", e.Status, e.Code, e.Message)
	}
	if e.RequestID != "" {
		msg += " (request " + e.RequestID + ")"
	}
	return msg
}

// Is maps statuses onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// Client calls the exam endpoints with a bearer token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a Client for the API at baseURL.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 90 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string { return c.baseURL }

// Token returns the bearer token.
func (c *Client) Token() string { return c.token }

// StartExam fetches the exam for skillName.
func (c *Client) StartExam(ctx context.Context, skillName, userEmail string) (*model.CandidateExam, error) {
	var out model.StartExamResponse
	err := c.do(ctx, http.MethodPost, "/exam/start", model.StartExamRequest{SkillName: skillName, UserEmail: userEmail}, &out)
	if err != nil {
		return nil, err
	}
	if out.Exam == nil {
		return nil, errors.New("exam api: response without exam")
	}
	return out.Exam, nil
}

// SubmitExam sends answers and returns the graded result.
func (c *Client) SubmitExam(ctx context.Context, req *model.SubmitExamRequest) (*model.ExamResult, error) {
	var out model.ExamResult
	if err := c.do(ctx, http.MethodPost, "/exam/submit", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Attempts lists the caller's attempts, optionally for one skill.
func (c *Client) Attempts(ctx context.Context, skillName string, limit int) ([]model.SkillVerificationAttempt, error) {
	q := url.Values{}
	if skillName != "" {
		q.Set("skillName", skillName)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	path := "/exam/attempts"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out struct {
		Attempts []model.SkillVerificationAttempt `json:"attempts"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Attempts, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if c.token == "" {
		return ErrMissingToken
	}

	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set(response.HeaderRequestID, uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, RequestID: resp.Header.Get(response.HeaderRequestID)}
		var eb response.ErrorResponse
		if json.Unmarshal(data, &eb) == nil && eb.Error != nil {
			apiErr.Code = eb.Error.Code
			apiErr.Message = eb.Error.Message
			if eb.Metadata.RequestID != "" {
				apiErr.RequestID = eb.Metadata.RequestID
			}
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
