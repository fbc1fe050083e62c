package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestPayload carries any client action; unused fields stay zero.
type RequestPayload struct {
	Action         Action `json:"action"`
	QuestionNumber int    `json:"question_number,omitempty"`
	Text           string `json:"text,omitempty"`
	ConfirmEmpty   bool   `json:"confirm_empty,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventTick      Event = "tick"
	EventExpired   Event = "expired"
	EventSaved     Event = "saved"
	EventSubmitted Event = "submitted"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// TickResponse streams the remaining time, recomputed from the deadline on
// every tick.
type TickResponse struct {
	Event            Event   `json:"event"`
	RemainingSeconds float64 `json:"remaining_seconds"`
	Status           string  `json:"status"`
}

type SavedResponse struct {
	Event          Event `json:"event"`
	QuestionNumber int   `json:"question_number"`
	AttemptedCount int   `json:"attempted_count"`
}

type SubmittedResponse struct {
	Event        Event  `json:"event"`
	SubmissionID string `json:"submission_id"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
