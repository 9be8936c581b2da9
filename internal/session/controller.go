package session

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ai-evaluator/testtaker/internal/model"
)

// Service is the part of the Test Service a session needs.
type Service interface {
	StartTest(ctx context.Context, testID, studentID string) (*model.StartTestResponse, error)
	SubmitAttempt(ctx context.Context, attemptID string, answers []model.Answer) (*model.Attempt, error)
}

// Controller drives one student through one timed test and submits the
// answers exactly once, by the student or by the countdown.
//
// All state is guarded by mu. The countdown runs on its own goroutine and a
// submission request runs on another; neither holds mu while calling out.
// Events are queued under mu and delivered to listeners in that order.
type Controller struct {
	svc       Service
	studentID string
	clock     Clock
	interval  time.Duration
	log       zerolog.Logger
	listeners []Listener

	// ctx lives as long as the session; Close cancels in-flight requests.
	ctx    context.Context
	cancel context.CancelFunc

	resume *resume

	mu        sync.Mutex
	test      model.Test
	attempt   model.Attempt
	answers   *model.AnswerSheet
	current   int
	remaining int
	deadline  time.Time
	restored  int
	timer     TimerState
	stopTick  chan struct{}
	state     SubmissionState
	sub       *submission
	result    *model.Attempt
	lastErr   error
	discarded bool

	version  uint64
	events   []Event
	draining bool
}

// resume carries what an earlier session of the same student left behind.
type resume struct {
	answers  map[int]model.Answer
	deadline time.Time
}

// submission is one request to the Test Service. Callers wait on done and
// then read result or err.
type submission struct {
	trigger   Trigger
	attemptID string
	answers   []model.Answer
	done      chan struct{}
	result    *model.Attempt
	err       error
}

// Option customizes a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock driving the countdown.
func WithClock(clock Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithTickInterval sets how often one second is taken off the countdown.
func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log.With().Str("component", "session").Logger() }
}

// WithResume continues an earlier session: answers are restored before the
// countdown starts and the countdown ends at deadline instead of a full time
// limit from now. A zero deadline keeps the full time limit. A deadline that
// has already passed expires the session as soon as it starts.
func WithResume(answers map[int]model.Answer, deadline time.Time) Option {
	return func(c *Controller) { c.resume = &resume{answers: answers, deadline: deadline} }
}

// WithListener registers a listener for session events.
func WithListener(l Listener) Option {
	return func(c *Controller) {
		if l != nil {
			c.listeners = append(c.listeners, l)
		}
	}
}

// Start asks the Test Service for the test, which also opens the server-side
// attempt, and begins the countdown. On failure it returns a *StartError.
func Start(ctx context.Context, svc Service, testID, studentID string, opts ...Option) (*Controller, error) {
	c := &Controller{
		svc:       svc,
		studentID: studentID,
		clock:     realClock{},
		interval:  time.Second,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	resp, err := svc.StartTest(ctx, testID, studentID)
	if err != nil {
		c.log.Warn().Err(err).Str("test_id", testID).Msg("Failed to start test")
		return nil, &StartError{TestID: testID, Message: userMessage(err, DefaultStartMessage), Err: err}
	}
	if len(resp.Test.Questions) == 0 {
		return nil, &StartError{TestID: testID, Message: DefaultStartMessage, Err: ErrNoQuestions}
	}

	c.test = resp.Test
	c.attempt = resp.Attempt
	c.answers = model.NewAnswerSheet(len(resp.Test.Questions))
	c.remaining = resp.Test.TimeLimitSeconds()
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.log = c.log.With().
		Str("test_id", testID).
		Str("attempt_id", resp.Attempt.ID).
		Str("student_id", studentID).
		Logger()

	timed := c.remaining > 0
	if c.resume != nil {
		c.applyResume(timed)
	}
	if timed {
		c.deadline = c.clock.Now().Add(time.Duration(c.remaining) * time.Second)
	}

	c.log.Info().
		Int("questions", len(c.test.Questions)).
		Int("remaining_seconds", c.remaining).
		Int("restored_answers", c.restored).
		Msg("Test session started")

	switch {
	case c.remaining > 0:
		c.timer = TimerRunning
		c.stopTick = make(chan struct{})
		go c.runTimer(c.clock.NewTicker(c.interval), c.stopTick)
	case timed:
		c.mu.Lock()
		s, started := c.expireLocked()
		c.mu.Unlock()

		c.log.Info().Msg("Time limit already passed")
		c.flush()
		if started {
			go c.send(s)
		}
	}

	return c, nil
}

// applyResume restores answers and shortens the countdown to the earlier
// deadline. Indices outside the test are ignored.
func (c *Controller) applyResume(timed bool) {
	n := len(c.test.Questions)
	for index, a := range c.resume.answers {
		if index < 0 || index >= n || !fits(c.test.Questions[index], a) {
			continue
		}
		c.answers.Set(index, a)
		c.restored++
	}

	if !timed || c.resume.deadline.IsZero() {
		return
	}
	left := int(math.Ceil(c.resume.deadline.Sub(c.clock.Now()).Seconds()))
	if left < 0 {
		left = 0
	}
	if left < c.remaining {
		c.remaining = left
	}
}

// fits reports whether a is a recordable answer to q.
func fits(q model.Question, a model.Answer) bool {
	switch a.Kind() {
	case model.AnswerOption:
		opt, _ := a.OptionIndex()
		return q.Kind() == model.QuestionTypeMCQ && opt < len(q.Options)
	case model.AnswerText:
		return q.Kind() == model.QuestionTypeParagraph
	default:
		return false
	}
}

// ─── Answers & navigation ─────────────────────────────────────────────

// RecordAnswer overwrites the answer for question index. An index outside the
// test is a programming error and panics.
func (c *Controller) RecordAnswer(index int, a model.Answer) {
	c.mu.Lock()
	if n := len(c.test.Questions); index < 0 || index >= n {
		c.mu.Unlock()
		panic(fmt.Sprintf("session: answer index %d out of range [0,%d)", index, n))
	}
	if c.discarded {
		c.mu.Unlock()
		return
	}
	c.answers.Set(index, a)
	c.queueLocked(Event{Kind: EventAnswer, Index: index, Answer: a})
	c.mu.Unlock()

	c.flush()
}

// GoTo moves the cursor to index, clamped to the first or last question.
func (c *Controller) GoTo(index int) int {
	c.mu.Lock()
	if index < 0 {
		index = 0
	}
	if last := len(c.test.Questions) - 1; index > last {
		index = last
	}
	if index != c.current && !c.discarded {
		c.current = index
		c.queueLocked(Event{Kind: EventNavigate, Index: index})
	}
	current := c.current
	c.mu.Unlock()

	c.flush()
	return current
}

// Next moves to the following question; a no-op on the last one.
func (c *Controller) Next() int {
	return c.GoTo(c.CurrentIndex() + 1)
}

// Previous moves to the preceding question; a no-op on the first one.
func (c *Controller) Previous() int {
	return c.GoTo(c.CurrentIndex() - 1)
}

// ─── Submission ───────────────────────────────────────────────────────

// Submit sends the recorded answers. While a submission is in flight, or after
// one succeeded, Submit makes no new request and returns that submission's
// outcome. After a failure it sends again (an explicit retry).
//
// Confirming unanswered questions is the caller's job for Manual submits; see
// UnansweredCount. ctx bounds only the wait: the request itself is cancelled
// only by Close.
func (c *Controller) Submit(ctx context.Context, trigger Trigger) (*model.Attempt, error) {
	c.mu.Lock()
	if c.discarded {
		c.mu.Unlock()
		return nil, ErrDiscarded
	}
	s, started := c.beginLocked(trigger)
	if started {
		c.queueLocked(Event{Kind: EventSubmitting, Trigger: trigger})
	}
	c.mu.Unlock()

	if started {
		c.flush()
		go c.send(s)
	}

	select {
	case <-s.done:
		return s.result, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// beginLocked returns the submission covering a request and whether it is new.
func (c *Controller) beginLocked(trigger Trigger) (*submission, bool) {
	if c.state == Submitting || c.state == Submitted {
		return c.sub, false
	}

	s := &submission{
		trigger:   trigger,
		attemptID: c.attempt.ID,
		answers:   c.answers.Answers(),
		done:      make(chan struct{}),
	}
	c.sub = s
	c.state = Submitting
	c.lastErr = nil
	return s, true
}

func (c *Controller) send(s *submission) {
	res, err := c.svc.SubmitAttempt(c.ctx, s.attemptID, s.answers)

	c.mu.Lock()
	if c.discarded {
		s.err = ErrDiscarded
		c.mu.Unlock()
		close(s.done)
		c.log.Debug().Msg("Dropped submission outcome of discarded session")
		return
	}

	ev := Event{Trigger: s.trigger}
	if err != nil {
		s.err = &SubmitError{
			AttemptID: s.attemptID,
			Trigger:   s.trigger,
			Message:   userMessage(err, DefaultSubmitMessage),
			Err:       err,
		}
		c.state = Failed
		c.lastErr = s.err
		if s.trigger == Manual {
			c.stopTimerLocked()
		}
		ev.Kind = EventSubmitFailed
		ev.Err = s.err
	} else {
		s.result = res
		c.state = Submitted
		c.result = res
		c.stopTimerLocked()
		ev.Kind = EventSubmitted
	}
	ev = c.queueLocked(ev)
	c.mu.Unlock()
	close(s.done)

	if err != nil {
		c.log.Error().Err(err).Str("trigger", s.trigger.String()).Msg("Submission failed")
	} else {
		c.log.Info().
			Str("trigger", s.trigger.String()).
			Float64("score", res.Score).
			Int("unanswered", ev.Snapshot.Unanswered).
			Msg("Test submitted")
	}
	c.flush()
}

// ─── Countdown ────────────────────────────────────────────────────────

func (c *Controller) runTimer(t Ticker, stop <-chan struct{}) {
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C():
			if !c.tick() {
				return
			}
		}
	}
}

// tick takes one second off the countdown and reports whether the timer is
// still running. Reaching zero expires the timer and fires the one timeout
// submission; ticks observed after that change nothing.
func (c *Controller) tick() bool {
	c.mu.Lock()
	if c.timer != TimerRunning || c.discarded {
		c.mu.Unlock()
		return false
	}

	if c.remaining > 0 {
		c.remaining--
	}
	if c.remaining > 0 {
		c.queueLocked(Event{Kind: EventTick})
		c.mu.Unlock()
		c.flush()
		return true
	}

	c.timer = TimerExpired
	c.queueLocked(Event{Kind: EventTick})
	s, started := c.expireLocked()
	c.mu.Unlock()

	c.log.Info().Bool("submitting", started).Msg("Time limit reached")
	c.flush()
	if started {
		go c.send(s)
	}
	return false
}

// expireLocked ends the countdown and begins the timeout submission unless
// one is already in flight or done.
func (c *Controller) expireLocked() (*submission, bool) {
	c.timer = TimerExpired
	c.queueLocked(Event{Kind: EventExpired, Trigger: Timeout})
	s, started := c.beginLocked(Timeout)
	if started {
		c.queueLocked(Event{Kind: EventSubmitting, Trigger: Timeout})
	}
	return s, started
}

func (c *Controller) stopTimerLocked() {
	if c.timer == TimerRunning {
		c.timer = TimerStopped
	}
	if c.stopTick != nil {
		close(c.stopTick)
		c.stopTick = nil
	}
}

// ─── Lifecycle ────────────────────────────────────────────────────────

// Close discards the session: the countdown stops, an in-flight request is
// cancelled and its outcome dropped. Close is idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.discarded {
		c.mu.Unlock()
		return
	}
	c.discarded = true
	c.stopTimerLocked()
	c.mu.Unlock()

	c.cancel()
	c.log.Debug().Msg("Test session discarded")
}

// ─── Accessors ────────────────────────────────────────────────────────

// Test returns the test snapshot taken at start.
func (c *Controller) Test() model.Test {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.test
}

// StudentID returns the student the session belongs to.
func (c *Controller) StudentID() string { return c.studentID }

// AttemptID returns the server-side attempt identifier.
func (c *Controller) AttemptID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt.ID
}

// QuestionCount returns the number of questions in the test.
func (c *Controller) QuestionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.test.Questions)
}

// CurrentIndex returns the cursor.
func (c *Controller) CurrentIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Answer returns the recorded answer for question index.
func (c *Controller) Answer(index int) model.Answer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answers.Get(index)
}

// Answers returns the index-aligned answers.
func (c *Controller) Answers() []model.Answer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answers.Answers()
}

// UnansweredCount returns how many questions have no answer, for the
// confirmation prompt before a Manual submit.
func (c *Controller) UnansweredCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answers.Unanswered()
}

// Deadline returns when the countdown runs out; zero for an untimed test.
func (c *Controller) Deadline() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadline
}

// Restored returns how many answers were carried over by WithResume.
func (c *Controller) Restored() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.restored
}

// Remaining returns the seconds left on the countdown.
func (c *Controller) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// TimerState returns the countdown state.
func (c *Controller) TimerState() TimerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer
}

// State returns the submission state.
func (c *Controller) State() SubmissionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Result returns the graded attempt once submitted.
func (c *Controller) Result() *model.Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Err returns the last submission error, if the session is Failed.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Snapshot returns a consistent view of the session for rendering.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}
