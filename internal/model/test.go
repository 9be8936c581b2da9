package model

// QuestionType enumerates the kinds of question a test can hold.
type QuestionType string

const (
	QuestionTypeMCQ       QuestionType = "mcq"
	QuestionTypeParagraph QuestionType = "paragraph"
)

// Test is the immutable definition a student answers.
type Test struct {
	ID          string     `json:"_id" validate:"required"`
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description,omitempty"`
	CreatedBy   string     `json:"created_by,omitempty"`
	TimeLimit   int        `json:"time_limit" validate:"min=0"` // minutes
	Questions   []Question `json:"questions" validate:"required,min=1,dive"`
	CreatedAt   Timestamp  `json:"created_at"`
}

// Question is a single test question. Options and CorrectAnswer are only
// meaningful for multiple-choice questions; the Test Service strips
// CorrectAnswer when a student starts a test.
type Question struct {
	Text          string       `json:"text" validate:"required"`
	Type          QuestionType `json:"type,omitempty" validate:"omitempty,oneof=mcq paragraph"`
	Options       []string     `json:"options,omitempty" validate:"required_unless=Type paragraph"`
	CorrectAnswer *int         `json:"correct_answer,omitempty"`
	ModelAnswer   string       `json:"model_answer,omitempty"`
}

// Kind returns the question type, treating a missing type as mcq.
func (q Question) Kind() QuestionType {
	if q.Type == "" {
		return QuestionTypeMCQ
	}
	return q.Type
}

// TimeLimitSeconds converts the time limit to the countdown start value.
func (t Test) TimeLimitSeconds() int {
	if t.TimeLimit <= 0 {
		return 0
	}
	return t.TimeLimit * 60
}
