// Package report renders graded attempts for students.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/ai-evaluator/testtaker/internal/model"
)

// NoFeedback is shown when the grader left no comment on a question.
const NoFeedback = "No feedback available"

// LetterGrade maps a percentage score to a letter.
func LetterGrade(score float64) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

// OptionLetter returns the display letter for an option index: 0 -> "A".
func OptionLetter(index int) string {
	if index < 0 || index >= 26 {
		return "?"
	}
	return string(rune('A' + index))
}

// CorrectCount counts multiple-choice answers that match the answer key.
// Questions without a key (paragraph questions, or tests fetched with the
// key stripped) never count.
func CorrectCount(test model.Test, attempt model.Attempt) int {
	correct := 0
	for i, q := range test.Questions {
		if isCorrect(q, attempt.AnswerAt(i)) {
			correct++
		}
	}
	return correct
}

func isCorrect(q model.Question, a model.Answer) bool {
	if q.Kind() != model.QuestionTypeMCQ || q.CorrectAnswer == nil {
		return false
	}
	opt, ok := a.OptionIndex()
	return ok && opt == *q.CorrectAnswer
}

// AvailableTests hides the tests a student has already completed.
func AvailableTests(tests []model.Test, attempts []model.Attempt) []model.Test {
	done := make(map[string]struct{}, len(attempts))
	for _, a := range attempts {
		if a.IsCompleted {
			done[a.TestID] = struct{}{}
		}
	}

	available := make([]model.Test, 0, len(tests))
	for _, t := range tests {
		if _, ok := done[t.ID]; !ok {
			available = append(available, t)
		}
	}
	return available
}

// CompletedAttempts keeps only finished attempts.
func CompletedAttempts(attempts []model.Attempt) []model.Attempt {
	completed := make([]model.Attempt, 0, len(attempts))
	for _, a := range attempts {
		if a.IsCompleted {
			completed = append(completed, a)
		}
	}
	return completed
}

// WriteResult renders one graded attempt with a per-question review.
func WriteResult(w io.Writer, test model.Test, attempt model.Attempt) error {
	rw := &errWriter{w: w}

	rw.printf("%s\n%s\n", test.Title, strings.Repeat("=", len(test.Title)))
	rw.printf("Score: %.1f%%  Grade: %s\n", attempt.Score, LetterGrade(attempt.Score))
	if hasMCQ(test) {
		rw.printf("Correct: %d\n", CorrectCount(test, attempt))
	}
	if !attempt.CompletedAt.IsZero() {
		rw.printf("Completed: %s\n", attempt.CompletedAt.Local().Format("2006-01-02 15:04"))
	}

	for i, q := range test.Questions {
		rw.printf("\nQuestion %d: %s\n", i+1, q.Text)
		answer := attempt.AnswerAt(i)

		if q.Kind() == model.QuestionTypeParagraph {
			text, ok := answer.TextValue()
			if !ok || text == "" {
				text = "No answer provided"
			}
			score, _ := attempt.QuestionScoreAt(i)
			feedback := attempt.FeedbackAt(i)
			if feedback == "" {
				feedback = NoFeedback
			}
			rw.printf("  Your answer: %s\n", text)
			rw.printf("  Score: %.1f / 10\n", score)
			rw.printf("  AI feedback: %s\n", feedback)
			continue
		}

		for j, opt := range q.Options {
			marker := " "
			if sel, ok := answer.OptionIndex(); ok && sel == j {
				marker = ">"
			}
			suffix := ""
			if q.CorrectAnswer != nil && *q.CorrectAnswer == j {
				suffix = " (correct answer)"
			}
			rw.printf("  %s %s. %s%s\n", marker, OptionLetter(j), opt, suffix)
		}
		if q.CorrectAnswer != nil && !isCorrect(q, answer) {
			selected := "no option"
			if sel, ok := answer.OptionIndex(); ok {
				selected = OptionLetter(sel)
			}
			rw.printf("  You selected %s, but the correct answer was %s.\n", selected, OptionLetter(*q.CorrectAnswer))
		}
	}
	return rw.err
}

// WriteAttempts renders a table of completed attempts.
func WriteAttempts(w io.Writer, attempts []model.Attempt) error {
	completed := CompletedAttempts(attempts)
	if len(completed) == 0 {
		_, err := fmt.Fprintln(w, "You haven't completed any tests yet.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TEST\tSCORE\tGRADE\tCOMPLETED\tATTEMPT")
	for _, a := range completed {
		title := a.TestID
		if a.Test != nil && a.Test.Title != "" {
			title = a.Test.Title
		}
		completedAt := "-"
		if !a.CompletedAt.IsZero() {
			completedAt = a.CompletedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%.1f%%\t%s\t%s\t%s\n", title, a.Score, LetterGrade(a.Score), completedAt, a.ID)
	}
	return tw.Flush()
}

func hasMCQ(test model.Test) bool {
	for _, q := range test.Questions {
		if q.Kind() == model.QuestionTypeMCQ {
			return true
		}
	}
	return false
}

// errWriter keeps the first write error so rendering code stays linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...interface{}) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
