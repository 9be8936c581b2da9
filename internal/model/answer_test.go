package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestAnswerJSON(t *testing.T) {
	answers := []Answer{OptionAnswer(2), Unanswered(), TextAnswer("photosynthesis"), OptionAnswer(0)}

	raw, err := json.Marshal(answers)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got, want := string(raw), `[2,null,"photosynthesis",0]`; got != want {
		t.Fatalf("marshal = %s, want %s", got, want)
	}

	var back []Answer
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for i := range answers {
		if back[i] != answers[i] {
			t.Fatalf("answer %d = %v, want %v", i, back[i], answers[i])
		}
	}
}

func TestAnswerUnmarshalRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "fractional option", raw: `1.5`},
		{name: "negative option", raw: `-1`},
		{name: "huge option", raw: `1e300`},
		{name: "option past int32", raw: `2147483648`},
		{name: "object", raw: `{"selected":1}`},
		{name: "bool", raw: `true`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var a Answer
			if err := json.Unmarshal([]byte(tc.raw), &a); err == nil {
				t.Fatalf("expected error for %s, got %v", tc.raw, a)
			}
		})
	}
}

func TestAnswerSheet(t *testing.T) {
	sheet := NewAnswerSheet(3)
	if sheet.Unanswered() != 3 {
		t.Fatalf("Unanswered = %d, want 3", sheet.Unanswered())
	}

	sheet.Set(0, OptionAnswer(1))
	sheet.Set(0, OptionAnswer(3))
	sheet.Set(2, TextAnswer("draft"))
	sheet.Set(2, Unanswered())

	if got, _ := sheet.Get(0).OptionIndex(); got != 3 {
		t.Fatalf("last write should win, got %d", got)
	}
	if sheet.Get(2).IsAnswered() {
		t.Fatalf("slot 2 should be cleared")
	}
	if sheet.Unanswered() != 2 {
		t.Fatalf("Unanswered = %d, want 2", sheet.Unanswered())
	}

	got := sheet.Answers()
	if len(got) != 3 || got[0] != OptionAnswer(3) || got[1].IsAnswered() || got[2].IsAnswered() {
		t.Fatalf("Answers = %v", got)
	}
}

func TestAnswerSheetOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range index")
		}
	}()
	NewAnswerSheet(2).Set(2, OptionAnswer(0))
}

func TestTimestampFormats(t *testing.T) {
	want := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

	for _, raw := range []string{
		`"Sat, 17 Oct 2026 09:30:00 GMT"`,
		`"2026-10-17T09:30:00Z"`,
		`"2026-10-17T09:30:00.000000"`,
	} {
		var ts Timestamp
		if err := json.Unmarshal([]byte(raw), &ts); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if !ts.Equal(want) {
			t.Fatalf("unmarshal %s = %v, want %v", raw, ts.Time, want)
		}
	}

	var empty Timestamp
	if err := json.Unmarshal([]byte(`null`), &empty); err != nil || !empty.IsZero() {
		t.Fatalf("null should decode to zero time, got %v (%v)", empty.Time, err)
	}
}

func TestQuestionKindDefaultsToMCQ(t *testing.T) {
	if (Question{Text: "2+2?"}).Kind() != QuestionTypeMCQ {
		t.Fatal("missing type should default to mcq")
	}
	if (Test{TimeLimit: 1}).TimeLimitSeconds() != 60 {
		t.Fatal("TimeLimitSeconds should convert minutes")
	}
}
