package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gradeloop/session-engine/internal/model"
	"github.com/rs/zerolog"
)

func TestGetAssessmentDecodesResponse(t *testing.T) {
	assessmentID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/student/assessments/"+assessmentID.String() {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(model.Assessment{
			ID:              assessmentID,
			Title:           "Midterm",
			DurationSeconds: 1800,
			Questions: []model.Question{
				{Number: 1, Text: "Q1", MaxScore: 10},
			},
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", zerolog.Nop())
	got, err := client.GetAssessment(context.Background(), assessmentID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Midterm" || len(got.Questions) != 1 {
		t.Fatalf("decoded assessment = %+v", got)
	}
}

func TestSubmitSendsSnapshotAndToken(t *testing.T) {
	var gotAuth string
	var gotBody struct {
		Answers []model.Answer `json:"answers"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(model.SubmissionResult{SubmissionID: uuid.New()})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "svc-token", zerolog.Nop())
	answers := []model.Answer{
		{QuestionNumber: 1, Text: "a"},
		{QuestionNumber: 2, Text: ""},
	}

	result, err := client.Submit(context.Background(), uuid.New(), answers)
	if err != nil {
		t.Fatal(err)
	}
	if result.SubmissionID == uuid.Nil {
		t.Fatal("submission ID should be set")
	}
	if gotAuth != "Bearer svc-token" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if len(gotBody.Answers) != 2 {
		t.Fatalf("delivered %d answers, want the full snapshot", len(gotBody.Answers))
	}
}

func TestUnreachableHostIsTransportError(t *testing.T) {
	// Nothing listens on port 1.
	client := NewHTTPClient("http://127.0.0.1:1", "", zerolog.Nop())

	_, err := client.Submit(context.Background(), uuid.New(), nil)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *TransportError", err)
	}
	if !IsRetryable(err) {
		t.Fatal("transport failure must be retryable")
	}
}

func TestServerErrorClassification(t *testing.T) {
	cases := []struct {
		status    int
		retryable bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusBadRequest, false},
		{http.StatusUnprocessableEntity, false},
		{http.StatusConflict, false},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tc.status)
		}))

		client := NewHTTPClient(srv.URL, "", zerolog.Nop())
		_, err := client.Submit(context.Background(), uuid.New(), nil)
		srv.Close()

		var se *ServerError
		if !errors.As(err, &se) {
			t.Fatalf("status %d: error = %v, want *ServerError", tc.status, err)
		}
		if se.StatusCode != tc.status {
			t.Fatalf("status recorded = %d, want %d", se.StatusCode, tc.status)
		}
		if got := IsRetryable(err); got != tc.retryable {
			t.Fatalf("IsRetryable(%d) = %v, want %v", tc.status, got, tc.retryable)
		}
	}
}

func TestFinalizeRoundTrip(t *testing.T) {
	submissionID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Scores []model.FinalScore `json:"scores"`
		}
		json.NewDecoder(r.Body).Decode(&payload)
		var total float64
		for _, s := range payload.Scores {
			total += s.Score
		}
		json.NewEncoder(w).Encode(model.FinalizeReceipt{
			SubmissionID: submissionID,
			TotalScore:   total,
			MaxScore:     20,
			Percentage:   total / 20 * 100,
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", zerolog.Nop())
	receipt, err := client.Finalize(context.Background(), submissionID, []model.FinalScore{
		{QuestionNumber: 1, Score: 9},
		{QuestionNumber: 2, Score: 10},
	})
	if err != nil {
		t.Fatal(err)
	}
	if receipt.TotalScore != 19 {
		t.Fatalf("receipt total = %v, want 19", receipt.TotalScore)
	}
}

func TestIsRetryableUnknownError(t *testing.T) {
	if IsRetryable(errors.New("some local failure")) {
		t.Fatal("unclassified errors must not be considered retryable")
	}
}
