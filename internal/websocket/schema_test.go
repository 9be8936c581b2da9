package websocket

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ai-evaluator/testtaker/internal/model"
	"github.com/ai-evaluator/testtaker/internal/session"
)

func TestAnswerRequestAnswer(t *testing.T) {
	tests := []struct {
		raw  string
		want model.Answer
	}{
		{raw: `{"action":"answer","index":0,"option":2}`, want: model.OptionAnswer(2)},
		{raw: `{"action":"answer","index":1,"text":"osmosis"}`, want: model.TextAnswer("osmosis")},
		{raw: `{"action":"answer","index":1,"text":""}`, want: model.Unanswered()},
		{raw: `{"action":"answer","index":1}`, want: model.Unanswered()},
	}

	for _, tc := range tests {
		var req AnswerRequest
		if err := Decode([]byte(tc.raw), &req); err != nil {
			t.Fatalf("%s: %v", tc.raw, err)
		}
		if got := req.Answer(); got != tc.want {
			t.Errorf("%s: answer = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestNewStateResponseHidesAnswerKey(t *testing.T) {
	key := 1
	snap := session.Snapshot{
		TestID:        "t1",
		Title:         "Biology",
		QuestionCount: 1,
		Question:      model.Question{Text: "q", Options: []string{"a", "b"}, CorrectAnswer: &key},
		Answers:       []model.Answer{model.Unanswered()},
		Unanswered:    1,
		Remaining:     65,
		Clock:         "01:05",
		Timer:         session.TimerRunning,
		Submission:    session.Failed,
		Err:           errors.New("Failed to submit test. Please try again."),
	}

	raw, err := json.Marshal(NewStateResponse(snap))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	state := decoded["state"].(map[string]interface{})
	question := state["question"].(map[string]interface{})

	if _, leaked := question["correct_answer"]; leaked {
		t.Fatal("answer key must not reach the client")
	}
	if question["type"] != "mcq" || state["clock"] != "01:05" || state["submission"] != "failed" {
		t.Fatalf("state = %v", state)
	}
	if state["error"] != "Failed to submit test. Please try again." {
		t.Fatalf("error = %v", state["error"])
	}
}
