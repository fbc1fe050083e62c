package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gradeloop/session-engine/internal/model"
	"github.com/rs/zerolog"
)

// HTTPClient implements all three collaborator contracts against the platform
// REST API. It authenticates with a static service token issued to the engine.
type HTTPClient struct {
	baseURL      string
	serviceToken string
	client       *http.Client
	log          zerolog.Logger
}

var (
	_ AssessmentSource = (*HTTPClient)(nil)
	_ SubmissionSink   = (*HTTPClient)(nil)
	_ GradingGateway   = (*HTTPClient)(nil)
)

// NewHTTPClient creates a platform API client. No client-side timeout is
// imposed beyond the transport's own behavior; a stalled request is the
// caller's visible state, not something silently cut short here.
func NewHTTPClient(baseURL, serviceToken string, log zerolog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		serviceToken: serviceToken,
		client:       &http.Client{},
		log:          log.With().Str("component", "platform_gateway").Logger(),
	}
}

// GetAssessment fetches the paper for a session.
func (c *HTTPClient) GetAssessment(ctx context.Context, assessmentID uuid.UUID) (*model.Assessment, error) {
	var out model.Assessment
	path := fmt.Sprintf("/student/assessments/%s", assessmentID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Submit delivers a full answer snapshot. Called at most once per session by
// the gate; the platform does not deduplicate.
func (c *HTTPClient) Submit(ctx context.Context, assessmentID uuid.UUID, answers []model.Answer) (*model.SubmissionResult, error) {
	payload := struct {
		Answers []model.Answer `json:"answers"`
	}{Answers: answers}

	var out model.SubmissionResult
	path := fmt.Sprintf("/student/assessments/%s/submit", assessmentID)
	if err := c.do(ctx, http.MethodPost, path, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetGrades fetches the machine-produced per-question grades for a submission.
func (c *HTTPClient) GetGrades(ctx context.Context, submissionID uuid.UUID) ([]model.AIGrade, error) {
	var out struct {
		Grades []model.AIGrade `json:"grades"`
	}
	path := fmt.Sprintf("/grading/submissions/%s", submissionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Grades, nil
}

// Finalize commits every question's resolved score in one atomic request and
// returns the server's authoritative totals.
func (c *HTTPClient) Finalize(ctx context.Context, submissionID uuid.UUID, scores []model.FinalScore) (*model.FinalizeReceipt, error) {
	payload := struct {
		Scores []model.FinalScore `json:"scores"`
	}{Scores: scores}

	var out model.FinalizeReceipt
	path := fmt.Sprintf("/grading/submissions/%s/finalize", submissionID)
	if err := c.do(ctx, http.MethodPost, path, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetResult fetches the server's scored result for a submission.
func (c *HTTPClient) GetResult(ctx context.Context, submissionID uuid.UUID) (*model.SubmissionResult, error) {
	var out model.SubmissionResult
	path := fmt.Sprintf("/student/submissions/%s/result", submissionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do issues one request and classifies failures: unreachable → TransportError,
// non-2xx → ServerError carrying the status code.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.serviceToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.serviceToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Warn().
			Int("status", resp.StatusCode).
			Str("op", op).
			Msg("Platform request failed")
		return &ServerError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
	}
	return nil
}
