package model

// Attempt is the server-side record of one student's submission to a test.
type Attempt struct {
	ID             string    `json:"_id"`
	TestID         string    `json:"test_id"`
	StudentID      string    `json:"student_id"`
	Answers        []Answer  `json:"answers"`
	Score          float64   `json:"score"`
	IsCompleted    bool      `json:"is_completed"`
	StartedAt      Timestamp `json:"started_at"`
	CompletedAt    Timestamp `json:"completed_at"`
	QuestionScores []float64 `json:"question_scores,omitempty"`
	// Feedback holds the AI grader's comments, index-aligned with the questions.
	Feedback []string `json:"feedback,omitempty"`
	// Test is attached by the attempts listing.
	Test *AttemptTest `json:"test,omitempty"`
}

// AttemptTest is the test summary embedded in attempt listings.
type AttemptTest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	TimeLimit   int    `json:"time_limit"`
}

// FeedbackAt returns the feedback for question index, or "" when none exists.
func (a Attempt) FeedbackAt(index int) string {
	if index < 0 || index >= len(a.Feedback) {
		return ""
	}
	return a.Feedback[index]
}

// QuestionScoreAt returns the per-question score and whether one exists.
func (a Attempt) QuestionScoreAt(index int) (float64, bool) {
	if index < 0 || index >= len(a.QuestionScores) {
		return 0, false
	}
	return a.QuestionScores[index], true
}

// AnswerAt returns the submitted answer for question index.
func (a Attempt) AnswerAt(index int) Answer {
	if index < 0 || index >= len(a.Answers) {
		return Unanswered()
	}
	return a.Answers[index]
}
