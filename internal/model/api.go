package model

// LoginRequest is the payload for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned by POST /auth/login.
type LoginResponse struct {
	Message string `json:"message"`
	User    User   `json:"user"`
	Token   string `json:"token"`
}

// StartTestRequest is the payload for POST /tests/{id}/start.
type StartTestRequest struct {
	StudentID string `json:"student_id"`
}

// StartTestResponse is returned by POST /tests/{id}/start.
type StartTestResponse struct {
	Message string  `json:"message"`
	Test    Test    `json:"test"`
	Attempt Attempt `json:"attempt"`
}

// SubmitTestRequest is the payload for POST /attempts/{id}/submit.
type SubmitTestRequest struct {
	Answers []Answer `json:"answers"`
}

// SubmitTestResponse is returned by POST /attempts/{id}/submit.
type SubmitTestResponse struct {
	Message string  `json:"message"`
	Attempt Attempt `json:"attempt"`
}

// TestsResponse wraps test listings.
type TestsResponse struct {
	Tests []Test `json:"tests"`
}

// TestResponse wraps a single test.
type TestResponse struct {
	Test Test `json:"test"`
}

// AttemptsResponse wraps a student's attempts.
type AttemptsResponse struct {
	Attempts []Attempt `json:"attempts"`
}

// ErrorBody is the Test Service's error payload.
type ErrorBody struct {
	Error string `json:"error"`
}
