//go:build e2e
// +build e2e

package e2e

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"

	"github.com/ai-evaluator/testtaker/internal/model"
	"github.com/ai-evaluator/testtaker/internal/report"
	"github.com/ai-evaluator/testtaker/internal/session"
	"github.com/ai-evaluator/testtaker/internal/testservice"
)

// Runs against a live Test Service with an approved student account:
//
//	E2E_USERNAME=student E2E_PASSWORD=... go test -tags=e2e ./test/e2e/
const defaultBaseURL = "http://localhost:5000/api"

var (
	baseURL  string
	username string
	password string
)

func TestMain(m *testing.M) {
	// Load .env if present (ignore error)
	_ = godotenv.Load("../../.env")

	baseURL = os.Getenv("API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	username = os.Getenv("E2E_USERNAME")
	password = os.Getenv("E2E_PASSWORD")
	if username == "" || password == "" {
		fmt.Println("E2E_USERNAME and E2E_PASSWORD are required")
		os.Exit(0)
	}

	os.Exit(m.Run())
}

func signIn(t *testing.T, ctx context.Context) (*testservice.Client, model.User) {
	t.Helper()
	client := testservice.New(baseURL, testservice.WithTimeout(30*time.Second))
	resp, err := client.Login(ctx, username, password)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.User.Role != model.RoleStudent {
		t.Fatalf("E2E account must be a student, got %q", resp.User.Role)
	}
	return client.WithBearer(resp.Token), resp.User
}

func TestTakeAndSubmitTest(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client, user := signIn(t, ctx)

	tests, err := client.AvailableTests(ctx)
	if err != nil {
		t.Fatalf("available tests: %v", err)
	}
	attempts, err := client.StudentAttempts(ctx, user.ID)
	if err != nil {
		t.Fatalf("student attempts: %v", err)
	}
	open := report.AvailableTests(tests, attempts)
	if len(open) == 0 {
		t.Skip("no uncompleted tests for the E2E student")
	}
	target := open[0]

	ctrl, err := session.Start(ctx, client, target.ID, user.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer ctrl.Close()

	test := ctrl.Test()
	for i, q := range test.Questions {
		if q.Kind() == model.QuestionTypeParagraph {
			ctrl.RecordAnswer(i, model.TextAnswer("Answer written by the end-to-end test."))
		} else {
			ctrl.RecordAnswer(i, model.OptionAnswer(0))
		}
	}
	if ctrl.UnansweredCount() != 0 {
		t.Fatalf("unanswered = %d", ctrl.UnansweredCount())
	}

	attempt, err := ctrl.Submit(ctx, session.Manual)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !attempt.IsCompleted || attempt.ID != ctrl.AttemptID() {
		t.Fatalf("attempt = %+v", attempt)
	}
	if len(attempt.Answers) != len(test.Questions) {
		t.Fatalf("stored %d answers for %d questions", len(attempt.Answers), len(test.Questions))
	}

	// A completed test cannot be started again.
	_, err = session.Start(ctx, client, target.ID, user.ID)
	var se *session.StartError
	if !errors.As(err, &se) {
		t.Fatalf("restart err = %v, want *session.StartError", err)
	}
	t.Logf("restart refused: %s", se.Message)

	after, err := client.StudentAttempts(ctx, user.ID)
	if err != nil {
		t.Fatalf("student attempts: %v", err)
	}
	for _, remaining := range report.AvailableTests(tests, after) {
		if remaining.ID == target.ID {
			t.Fatal("submitted test is still listed as available")
		}
	}
}

func TestLoginWithWrongPassword(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := testservice.New(baseURL)
	_, err := client.Login(ctx, username, password+"-wrong")

	var apiErr *testservice.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 401 {
		t.Fatalf("err = %v, want 401 APIError", err)
	}
	if apiErr.ServerMessage() != "Invalid username or password" {
		t.Fatalf("message = %q", apiErr.ServerMessage())
	}
}
