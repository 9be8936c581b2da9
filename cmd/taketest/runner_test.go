package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ai-evaluator/testtaker/internal/model"
	"github.com/ai-evaluator/testtaker/internal/session"
)

type recordingService struct {
	mu        sync.Mutex
	timeLimit int
	failFirst int           // number of leading submissions that fail
	gate      chan struct{} // when set, submissions wait for it
	sent      [][]model.Answer
}

func (s *recordingService) StartTest(ctx context.Context, testID, studentID string) (*model.StartTestResponse, error) {
	return &model.StartTestResponse{
		Test: model.Test{
			ID:        testID,
			Title:     "Cell Biology",
			TimeLimit: s.timeLimit,
			Questions: []model.Question{
				{Text: "Powerhouse of the cell?", Options: []string{"Nucleus", "Mitochondria"}},
				{Text: "Explain osmosis.", Type: model.QuestionTypeParagraph},
			},
		},
		Attempt: model.Attempt{ID: "a1", TestID: testID},
	}, nil
}

func (s *recordingService) SubmitAttempt(ctx context.Context, attemptID string, answers []model.Answer) (*model.Attempt, error) {
	s.mu.Lock()
	s.sent = append(s.sent, answers)
	fail := len(s.sent) <= s.failFirst
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errors.New("connection reset by peer")
	}
	return &model.Attempt{ID: attemptID, Answers: answers, Score: 100, IsCompleted: true}, nil
}

func (s *recordingService) submissions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// syncBuffer is written by the runner and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// liveRunner drives a runner interactively: lines are typed one at a time
// once the output shows the runner is ready for them.
type liveRunner struct {
	t     *testing.T
	lines chan string
	out   *syncBuffer
	done  chan runResult
}

type runResult struct {
	attempt *model.Attempt
	err     error
}

func startRunner(t *testing.T, svc *recordingService, opts ...session.Option) *liveRunner {
	t.Helper()
	events := make(chan session.Event, 8)
	opts = append(opts, session.WithListener(eventSink(events)))
	ctrl, err := session.Start(context.Background(), svc, "t1", "s1", opts...)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(ctrl.Close)

	lr := &liveRunner{t: t, lines: make(chan string), out: &syncBuffer{}, done: make(chan runResult, 1)}
	r := &runner{ctrl: ctrl, lines: lr.lines, events: events, out: lr.out}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	go func() {
		attempt, err := r.run(ctx)
		lr.done <- runResult{attempt: attempt, err: err}
	}()
	return lr
}

// waitFor blocks until the output contains text n times.
func (lr *liveRunner) waitFor(text string, n int) {
	lr.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Count(lr.out.String(), text) >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	lr.t.Fatalf("timed out waiting for %q:\n%s", text, lr.out.String())
}

func (lr *liveRunner) typeLine(line string) {
	lr.t.Helper()
	select {
	case lr.lines <- line:
	case <-time.After(3 * time.Second):
		lr.t.Fatalf("runner did not read %q:\n%s", line, lr.out.String())
	}
}

func (lr *liveRunner) result() runResult {
	lr.t.Helper()
	select {
	case res := <-lr.done:
		return res
	case <-time.After(5 * time.Second):
		lr.t.Fatalf("runner did not finish:\n%s", lr.out.String())
		return runResult{}
	}
}

func runScript(t *testing.T, svc *recordingService, script ...string) (*model.Attempt, string, error) {
	t.Helper()
	events := make(chan session.Event, 8)
	ctrl, err := session.Start(context.Background(), svc, "t1", "s1", session.WithListener(eventSink(events)))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer ctrl.Close()

	lines := make(chan string, len(script))
	for _, l := range script {
		lines <- l
	}

	out := &syncBuffer{}
	r := &runner{ctrl: ctrl, lines: lines, events: events, out: out}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	attempt, err := r.run(ctx)
	return attempt, out.String(), err
}

func TestRunnerAnswersAndSubmits(t *testing.T) {
	svc := &recordingService{}
	attempt, out, err := runScript(t, svc, "2", "n", "1", "t Water moves across a membrane", "s")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if attempt == nil || attempt.ID != "a1" {
		t.Fatalf("attempt = %+v", attempt)
	}
	if !strings.Contains(out, "needs a written answer") {
		t.Errorf("option on a paragraph question should be refused:\n%s", out)
	}
	if strings.Contains(out, "Submit anyway?") {
		t.Errorf("no confirmation expected when everything is answered:\n%s", out)
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if len(svc.sent) != 1 {
		t.Fatalf("submissions = %d, want 1", len(svc.sent))
	}
	if opt, _ := svc.sent[0][0].OptionIndex(); opt != 1 {
		t.Fatalf("answer 0 = %v", svc.sent[0][0])
	}
	if text, _ := svc.sent[0][1].TextValue(); text != "Water moves across a membrane" {
		t.Fatalf("answer 1 = %v", svc.sent[0][1])
	}
}

func TestRunnerConfirmsUnanswered(t *testing.T) {
	svc := &recordingService{}
	attempt, out, err := runScript(t, svc, "1", "s", "n", "s", "y")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if attempt == nil {
		t.Fatal("expected a submitted attempt")
	}
	if strings.Count(out, "You have 1 unanswered question(s). Submit anyway?") != 2 {
		t.Errorf("expected two confirmation prompts:\n%s", out)
	}
	if !strings.Contains(out, "Submission cancelled.") {
		t.Errorf("declining must cancel:\n%s", out)
	}
}

func TestRunnerQuit(t *testing.T) {
	svc := &recordingService{}
	_, _, err := runScript(t, svc, "2", "q")
	if !errors.Is(err, errQuit) {
		t.Fatalf("err = %v, want errQuit", err)
	}
	if svc.submissions() != 0 {
		t.Fatal("quitting must not submit")
	}
}

func TestRunnerExpiryClosesConfirmPrompt(t *testing.T) {
	gate := make(chan struct{})
	svc := &recordingService{timeLimit: 1, gate: gate}
	lr := startRunner(t, svc, session.WithTickInterval(5*time.Millisecond))

	lr.typeLine("s")
	lr.waitFor("Submit anyway? [y/N]", 1)
	lr.waitFor("Time is up! Submitting your answers...", 1)

	// The prompt died with the countdown; a late "y" is not a second submit.
	lr.typeLine("y")
	lr.waitFor("Submitting, please wait...", 1)
	lr.typeLine("n")
	lr.waitFor("Submitting, please wait...", 2)
	close(gate)

	res := lr.result()
	if res.err != nil || res.attempt == nil || res.attempt.ID != "a1" {
		t.Fatalf("run = %+v, %v", res.attempt, res.err)
	}
	if svc.submissions() != 1 {
		t.Fatalf("submissions = %d, want 1", svc.submissions())
	}
	if out := lr.out.String(); strings.Contains(out, "Submission cancelled.") || strings.Contains(out, "Submitting...\n") {
		t.Fatalf("the confirm prompt outlived expiry:\n%s", out)
	}
}

func TestRunnerRetriesFailedManualSubmit(t *testing.T) {
	svc := &recordingService{failFirst: 1}
	lr := startRunner(t, svc)

	lr.typeLine("2")
	lr.typeLine("s")
	lr.waitFor("Submit anyway? [y/N]", 1)
	lr.typeLine("y")
	lr.waitFor("Type s to try again.", 1)
	if !strings.Contains(lr.out.String(), session.DefaultSubmitMessage) {
		t.Fatalf("failure message missing:\n%s", lr.out.String())
	}

	lr.typeLine("s")
	lr.waitFor("Submit anyway? [y/N]", 2)
	lr.typeLine("y")

	res := lr.result()
	if res.err != nil || res.attempt == nil {
		t.Fatalf("run = %+v, %v", res.attempt, res.err)
	}
	if svc.submissions() != 2 {
		t.Fatalf("submissions = %d, want 2", svc.submissions())
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if opt, _ := svc.sent[1][0].OptionIndex(); opt != 1 {
		t.Fatalf("retry answers = %v", svc.sent[1])
	}
}

func TestRunnerRetriesFailedTimeoutSubmit(t *testing.T) {
	svc := &recordingService{timeLimit: 1, failFirst: 1}
	lr := startRunner(t, svc, session.WithTickInterval(time.Millisecond))

	lr.waitFor("Time is up! Submitting your answers...", 1)
	lr.waitFor("Type s to try again.", 1)
	if svc.submissions() != 1 {
		t.Fatalf("submissions = %d before retry, want 1", svc.submissions())
	}

	lr.typeLine("s")
	lr.waitFor("You have 2 unanswered question(s). Submit anyway?", 1)
	lr.typeLine("y")

	res := lr.result()
	if res.err != nil || res.attempt == nil {
		t.Fatalf("run = %+v, %v", res.attempt, res.err)
	}
	if svc.submissions() != 2 {
		t.Fatalf("submissions = %d, want 2", svc.submissions())
	}
}

func TestAnsweredMarkers(t *testing.T) {
	snap := session.Snapshot{
		CurrentIndex: 1,
		Answers:      []model.Answer{model.OptionAnswer(0), model.Unanswered(), model.TextAnswer("x")},
	}
	if got := answeredMarkers(snap); got != "[x]< >[x]" {
		t.Fatalf("markers = %q", got)
	}
}
