package model

import "fmt"

// AnswerSheet maps question indexes to answers for a test of fixed size.
// Indexes without an entry read as unanswered. The sheet is never resized.
type AnswerSheet struct {
	size  int
	slots map[int]Answer
}

// NewAnswerSheet returns an all-unanswered sheet for size questions.
func NewAnswerSheet(size int) *AnswerSheet {
	return &AnswerSheet{size: size, slots: make(map[int]Answer, size)}
}

// Len returns the number of questions the sheet covers.
func (s *AnswerSheet) Len() int { return s.size }

// Get returns the answer at index, or Unanswered when none was recorded.
func (s *AnswerSheet) Get(index int) Answer {
	return s.slots[index]
}

// Set overwrites the answer at index. An out-of-range index is a programming
// error and panics.
func (s *AnswerSheet) Set(index int, a Answer) {
	if index < 0 || index >= s.size {
		panic(fmt.Sprintf("answer sheet: index %d out of range [0,%d)", index, s.size))
	}
	if !a.IsAnswered() {
		delete(s.slots, index)
		return
	}
	s.slots[index] = a
}

// Unanswered counts the questions without an answer.
func (s *AnswerSheet) Unanswered() int {
	return s.size - len(s.slots)
}

// Answers returns the index-aligned slice sent to the Test Service.
func (s *AnswerSheet) Answers() []Answer {
	out := make([]Answer, s.size)
	for i, a := range s.slots {
		out[i] = a
	}
	return out
}
