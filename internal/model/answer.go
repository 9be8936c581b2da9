package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// AnswerKind tags the value held by an Answer.
type AnswerKind uint8

const (
	AnswerNone AnswerKind = iota
	AnswerOption
	AnswerText
)

func (k AnswerKind) String() string {
	switch k {
	case AnswerOption:
		return "option"
	case AnswerText:
		return "text"
	default:
		return "none"
	}
}

// Answer is a student's response to one question: unanswered, a zero-based
// option index (mcq) or free text (paragraph). The zero value is unanswered.
// On the wire it is null, a number or a string.
type Answer struct {
	kind   AnswerKind
	option int
	text   string
}

// Unanswered returns the explicit "no answer yet" value.
func Unanswered() Answer { return Answer{} }

// OptionAnswer selects the zero-based option index of a multiple-choice question.
func OptionAnswer(index int) Answer {
	return Answer{kind: AnswerOption, option: index}
}

// TextAnswer holds the free text of a paragraph question.
func TextAnswer(text string) Answer {
	return Answer{kind: AnswerText, text: text}
}

func (a Answer) Kind() AnswerKind { return a.kind }

func (a Answer) IsAnswered() bool { return a.kind != AnswerNone }

// OptionIndex returns the selected option and whether the answer is an option.
func (a Answer) OptionIndex() (int, bool) {
	return a.option, a.kind == AnswerOption
}

// TextValue returns the free text and whether the answer is text.
func (a Answer) TextValue() (string, bool) {
	return a.text, a.kind == AnswerText
}

func (a Answer) String() string {
	switch a.kind {
	case AnswerOption:
		return strconv.Itoa(a.option)
	case AnswerText:
		return strconv.Quote(a.text)
	default:
		return "unanswered"
	}
}

// MarshalJSON implements json.Marshaler.
func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.kind {
	case AnswerOption:
		return []byte(strconv.Itoa(a.option)), nil
	case AnswerText:
		return json.Marshal(a.text)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = Unanswered()
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode text answer: %w", err)
		}
		*a = TextAnswer(s)
		return nil
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("decode answer %s: %w", data, err)
		}
		if f != math.Trunc(f) || f < 0 || f > math.MaxInt32 {
			return fmt.Errorf("decode answer %s: option index must be a non-negative integer", data)
		}
		*a = OptionAnswer(int(f))
		return nil
	}
}
