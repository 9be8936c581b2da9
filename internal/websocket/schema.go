package websocket

import (
	"github.com/ai-evaluator/testtaker/internal/model"
	"github.com/ai-evaluator/testtaker/internal/session"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer   Action = "answer"
	ActionGoTo     Action = "goto"
	ActionNext     Action = "next"
	ActionPrevious Action = "previous"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action" validate:"required,oneof=answer goto next previous submit ping"`
}

// AnswerRequest records an answer for one question. Option answers a
// multiple-choice question, Text a paragraph question; sending neither
// clears the answer.
type AnswerRequest struct {
	Action Action  `json:"action"`
	Index  *int    `json:"index" validate:"required,min=0"`
	Option *int    `json:"option" validate:"omitempty,min=0,excluded_with=Text"`
	Text   *string `json:"text" validate:"omitempty,max=20000"`
}

// Answer converts the request into a session answer.
func (r AnswerRequest) Answer() model.Answer {
	switch {
	case r.Option != nil:
		return model.OptionAnswer(*r.Option)
	case r.Text != nil && *r.Text != "":
		return model.TextAnswer(*r.Text)
	default:
		return model.Unanswered()
	}
}

// GoToRequest moves the cursor.
type GoToRequest struct {
	Action Action `json:"action"`
	Index  *int   `json:"index" validate:"required"`
}

// SubmitRequest hands the test in. Confirm acknowledges unanswered questions.
type SubmitRequest struct {
	Action  Action `json:"action"`
	Confirm bool   `json:"confirm"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState           Event = "state"
	EventConfirmRequired Event = "confirm_required"
	EventSubmitted       Event = "submitted"
	EventError           Event = "error"
	EventPong            Event = "pong"
)

// QuestionView is a question as shown to the student, without answer keys.
type QuestionView struct {
	Text    string             `json:"text"`
	Type    model.QuestionType `json:"type"`
	Options []string           `json:"options,omitempty"`
}

// SessionState mirrors session.Snapshot on the wire.
type SessionState struct {
	Version       uint64         `json:"version"`
	TestID        string         `json:"test_id"`
	AttemptID     string         `json:"attempt_id"`
	Title         string         `json:"title"`
	QuestionCount int            `json:"question_count"`
	CurrentIndex  int            `json:"current_index"`
	Question      QuestionView   `json:"question"`
	Answers       []model.Answer `json:"answers"`
	Unanswered    int            `json:"unanswered"`
	Remaining     int            `json:"remaining_seconds"`
	Clock         string         `json:"clock"`
	Timed         bool           `json:"timed"`
	Timer         string         `json:"timer"`
	Submission    string         `json:"submission"`
	Error         string         `json:"error,omitempty"`
}

type StateResponse struct {
	Event Event        `json:"event"`
	State SessionState `json:"state"`
}

// NewStateResponse renders a session snapshot.
func NewStateResponse(snap session.Snapshot) StateResponse {
	state := SessionState{
		Version:       snap.Version,
		TestID:        snap.TestID,
		AttemptID:     snap.AttemptID,
		Title:         snap.Title,
		QuestionCount: snap.QuestionCount,
		CurrentIndex:  snap.CurrentIndex,
		Question: QuestionView{
			Text:    snap.Question.Text,
			Type:    snap.Question.Kind(),
			Options: snap.Question.Options,
		},
		Answers:    snap.Answers,
		Unanswered: snap.Unanswered,
		Remaining:  snap.Remaining,
		Clock:      snap.Clock,
		Timed:      snap.Timed,
		Timer:      snap.Timer.String(),
		Submission: snap.Submission.String(),
	}
	if snap.Err != nil {
		state.Error = snap.Err.Error()
	}
	return StateResponse{Event: EventState, State: state}
}

type ConfirmRequiredResponse struct {
	Event      Event `json:"event"`
	Unanswered int   `json:"unanswered"`
}

type SubmittedResponse struct {
	Event     Event   `json:"event"`
	AttemptID string  `json:"attempt_id"`
	Score     float64 `json:"score"`
	Trigger   string  `json:"trigger"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
