// Package e2e drives the full HTTP surface in-process: real router, real
// middlewares, real session and grading cores, with only the remote platform
// stubbed out. No external services are required.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gradeloop/session-engine/internal/config"
	"github.com/gradeloop/session-engine/internal/gateway"
	"github.com/gradeloop/session-engine/internal/grading"
	"github.com/gradeloop/session-engine/internal/handler"
	"github.com/gradeloop/session-engine/internal/model"
	"github.com/gradeloop/session-engine/internal/router"
	"github.com/gradeloop/session-engine/internal/service"
	"github.com/gradeloop/session-engine/internal/session"
	"github.com/gradeloop/session-engine/internal/validator"
	"github.com/rs/zerolog"
)

var (
	engine        *gin.Engine
	studentToken  string
	lecturerToken string
	assessmentID  = uuid.New()
	submissionID  = uuid.New()
)

// platformStub stands in for the remote assessment platform API.
func platformStub() *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /student/assessments/"+assessmentID.String(), func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(model.Assessment{
			ID:              assessmentID,
			Title:           "Operating Systems Final",
			DurationSeconds: 1800,
			Questions: []model.Question{
				{Number: 1, Text: "Explain virtual memory.", MaxScore: 10},
				{Number: 2, Text: "Describe a context switch.", MaxScore: 10},
			},
		})
	})

	mux.HandleFunc("POST /student/assessments/"+assessmentID.String()+"/submit", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(model.SubmissionResult{
			SubmissionID: submissionID,
			TotalScore:   0, // grading is asynchronous
			MaxScore:     20,
		})
	})

	mux.HandleFunc("GET /grading/submissions/"+submissionID.String(), func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"grades": []model.AIGrade{
				{QuestionNumber: 1, AIScore: 9, AIFeedback: "Good.", MaxScore: 10},
				{QuestionNumber: 2, AIScore: 7, AIFeedback: "Incomplete.", MaxScore: 10},
			},
		})
	})

	mux.HandleFunc("POST /grading/submissions/"+submissionID.String()+"/finalize", func(w http.ResponseWriter, r *http.Request) {
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
	})

	mux.HandleFunc("GET /student/submissions/"+submissionID.String()+"/result", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(model.SubmissionResult{
			SubmissionID: submissionID,
			TotalScore:   17,
			MaxScore:     20,
			Percentage:   85,
		})
	})

	return httptest.NewServer(mux)
}

func TestMain(m *testing.M) {
	stub := platformStub()
	defer stub.Close()

	cfg := &config.Config{
		GinMode:   gin.TestMode,
		JWTSecret: "e2e-test-secret",
		JWTExpiry: time.Hour,
	}

	validator.Setup()
	log := zerolog.Nop()

	platform := gateway.NewHTTPClient(stub.URL, "", log)
	authService := service.NewAuthService(cfg)
	manager := session.NewManager(platform, platform, nil, log)
	gradingService := grading.NewService(platform, log)

	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(manager, platform, log),
		Grading: handler.NewGradingHandler(gradingService, log),
		WS:      handler.NewWSHandler(manager, log, nil),
	}
	engine = router.SetupRouter(authService, handlers, cfg)

	var err error
	studentToken, err = authService.GenerateToken(service.TokenTypeStudent, 7, "E2E Student")
	if err != nil {
		fmt.Printf("token setup failed: %v\n", err)
		os.Exit(1)
	}
	lecturerToken, err = authService.GenerateToken(service.TokenTypeLecturer, 42, "E2E Lecturer")
	if err != nil {
		fmt.Printf("token setup failed: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func request(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: bad envelope: %v\nbody: %s", method, path, err, rec.Body.String())
	}
	return rec.Code, env
}

func TestStudentSessionLifecycle(t *testing.T) {
	// Start a session.
	code, env := request(t, http.MethodPost, "/api/v1/student/assessments/"+assessmentID.String()+"/sessions", studentToken, nil)
	if code != http.StatusCreated {
		t.Fatalf("start session: status %d, error %+v", code, env.Error)
	}

	var started struct {
		Session model.SessionState `json:"session"`
	}
	if err := json.Unmarshal(env.Data, &started); err != nil {
		t.Fatal(err)
	}
	sessionID := started.Session.SessionID
	if started.Session.Status != model.SessionStatusActive {
		t.Fatalf("new session status = %s", started.Session.Status)
	}
	if started.Session.RemainingSeconds <= 0 {
		t.Fatal("new session should have time remaining")
	}

	base := "/api/v1/student/sessions/" + sessionID.String()

	// Save two answers, rewrite one.
	for _, save := range []struct {
		question int
		text     string
	}{
		{1, "draft"},
		{1, "Pages map virtual addresses to frames."},
		{2, "The kernel swaps register state."},
	} {
		code, env = request(t, http.MethodPut, fmt.Sprintf("%s/answers/%d", base, save.question), studentToken,
			model.SaveAnswerRequest{Text: save.text})
		if code != http.StatusOK {
			t.Fatalf("save answer %d: status %d, error %+v", save.question, code, env.Error)
		}
	}

	// Unknown question is rejected.
	code, env = request(t, http.MethodPut, base+"/answers/9", studentToken, model.SaveAnswerRequest{Text: "x"})
	if code != http.StatusNotFound || env.Error == nil || env.Error.Code != "UNKNOWN_QUESTION" {
		t.Fatalf("unknown question: status %d, error %+v", code, env.Error)
	}

	// Reload recovery: state shows both answers and the rewrite.
	code, env = request(t, http.MethodGet, base+"/state", studentToken, nil)
	if code != http.StatusOK {
		t.Fatalf("get state: status %d", code)
	}
	var state model.SessionState
	json.Unmarshal(env.Data, &state)
	if state.AttemptedCount != 2 || state.QuestionCount != 2 {
		t.Fatalf("state = %+v", state)
	}
	if state.Answers[0].Text != "Pages map virtual addresses to frames." {
		t.Fatalf("rewrite lost: %q", state.Answers[0].Text)
	}

	// Submit.
	code, env = request(t, http.MethodPost, base+"/submit", studentToken, model.SubmitRequest{})
	if code != http.StatusOK {
		t.Fatalf("submit: status %d, error %+v", code, env.Error)
	}
	var submitted struct {
		Result model.SubmissionResult `json:"result"`
	}
	json.Unmarshal(env.Data, &submitted)
	if submitted.Result.SubmissionID != submissionID {
		t.Fatalf("submission ID = %s", submitted.Result.SubmissionID)
	}

	// A second submit is rejected — the gate is closed.
	code, env = request(t, http.MethodPost, base+"/submit", studentToken, model.SubmitRequest{})
	if code != http.StatusConflict || env.Error.Code != "ALREADY_SUBMITTED" {
		t.Fatalf("double submit: status %d, error %+v", code, env.Error)
	}

	// Answers are frozen after submission.
	code, env = request(t, http.MethodPut, base+"/answers/1", studentToken, model.SaveAnswerRequest{Text: "too late"})
	if code != http.StatusConflict || env.Error.Code != "SESSION_NOT_ACTIVE" {
		t.Fatalf("post-submit save: status %d, error %+v", code, env.Error)
	}

	// Fetch the scored result.
	code, env = request(t, http.MethodGet, "/api/v1/student/submissions/"+submissionID.String()+"/result", studentToken, nil)
	if code != http.StatusOK {
		t.Fatalf("get result: status %d", code)
	}
	var resultView struct {
		Result     model.SubmissionResult `json:"result"`
		GradeLabel string                 `json:"grade_label"`
	}
	json.Unmarshal(env.Data, &resultView)
	if resultView.Result.Percentage != 85 || resultView.GradeLabel != "Very Good" {
		t.Fatalf("result view = %+v", resultView)
	}
}

func TestLecturerReviewLifecycle(t *testing.T) {
	base := "/api/v1/lecturer/submissions/" + submissionID.String()

	// Student tokens are rejected on lecturer routes.
	code, env := request(t, http.MethodPost, base+"/review", studentToken, nil)
	if code != http.StatusForbidden {
		t.Fatalf("student on lecturer route: status %d", code)
	}

	// Open the review.
	code, env = request(t, http.MethodPost, base+"/review", lecturerToken, nil)
	if code != http.StatusOK {
		t.Fatalf("open review: status %d, error %+v", code, env.Error)
	}
	var review struct {
		Status model.ReviewStatus `json:"status"`
		Totals grading.Totals     `json:"totals"`
	}
	json.Unmarshal(env.Data, &review)
	if review.Status != model.ReviewStatusUnderReview {
		t.Fatalf("review status = %s", review.Status)
	}
	if review.Totals.TotalScore != 16 {
		t.Fatalf("machine totals = %+v", review.Totals)
	}

	// Out-of-range override is rejected.
	code, env = request(t, http.MethodPut, base+"/questions/2/override", lecturerToken,
		model.OverrideRequest{Score: 11})
	if code != http.StatusUnprocessableEntity || env.Error.Code != "SCORE_OUT_OF_RANGE" {
		t.Fatalf("bad override: status %d, error %+v", code, env.Error)
	}

	// Valid override changes the totals.
	code, env = request(t, http.MethodPut, base+"/questions/2/override", lecturerToken,
		model.OverrideRequest{Score: 10, Feedback: "Full credit on review."})
	if code != http.StatusOK {
		t.Fatalf("set override: status %d, error %+v", code, env.Error)
	}
	json.Unmarshal(env.Data, &review)
	if review.Totals.TotalScore != 19 {
		t.Fatalf("totals with override = %+v", review.Totals)
	}

	// Finalize commits the resolved scores atomically.
	code, env = request(t, http.MethodPost, base+"/finalize", lecturerToken, nil)
	if code != http.StatusOK {
		t.Fatalf("finalize: status %d, error %+v", code, env.Error)
	}
	var outcome grading.FinalizeOutcome
	json.Unmarshal(env.Data, &outcome)
	if outcome.TotalScore != 19 || outcome.IntegrityViolation {
		t.Fatalf("outcome = %+v", outcome)
	}

	// Finalized is terminal.
	code, env = request(t, http.MethodPost, base+"/finalize", lecturerToken, nil)
	if code != http.StatusConflict || env.Error.Code != "ALREADY_FINALIZED" {
		t.Fatalf("double finalize: status %d, error %+v", code, env.Error)
	}
	code, env = request(t, http.MethodPut, base+"/questions/1/override", lecturerToken,
		model.OverrideRequest{Score: 5})
	if code != http.StatusConflict || env.Error.Code != "ALREADY_FINALIZED" {
		t.Fatalf("override after finalize: status %d, error %+v", code, env.Error)
	}
}

func TestAuthRequired(t *testing.T) {
	code, _ := request(t, http.MethodGet, "/api/v1/student/sessions/"+uuid.New().String()+"/state", "", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("missing token: status %d", code)
	}
}
