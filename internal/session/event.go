package session

import (
	"github.com/ai-evaluator/testtaker/internal/model"
)

// EventKind names what changed in a session.
type EventKind string

const (
	EventTick         EventKind = "tick"
	EventAnswer       EventKind = "answer"
	EventNavigate     EventKind = "navigate"
	EventExpired      EventKind = "expired"
	EventSubmitting   EventKind = "submitting"
	EventSubmitted    EventKind = "submitted"
	EventSubmitFailed EventKind = "submit_failed"
)

// Event is delivered to listeners after the change it describes.
type Event struct {
	Kind EventKind
	// Index and Answer are set for answer and navigate events.
	Index  int
	Answer model.Answer
	// Trigger is set for expiry and submission events.
	Trigger  Trigger
	Snapshot Snapshot
	Err      error
}

// Listener receives session events in the order the changes happened. It is
// called without the session lock, possibly from the countdown goroutine, and
// must not block for long. Events a listener causes are delivered after it
// returns.
type Listener func(Event)

// Snapshot is a read-only view of a session. Version grows with every event,
// so of two snapshots the one with the higher Version is newer.
type Snapshot struct {
	Version       uint64
	TestID        string
	AttemptID     string
	Title         string
	QuestionCount int
	CurrentIndex  int
	Question      model.Question
	Answers       []model.Answer
	Unanswered    int
	Remaining     int
	Clock         string
	Timed         bool
	Timer         TimerState
	Submission    SubmissionState
	Result        *model.Attempt
	Err           error
}

// CurrentAnswer returns the answer to the question under the cursor.
func (s Snapshot) CurrentAnswer() model.Answer {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Answers) {
		return model.Unanswered()
	}
	return s.Answers[s.CurrentIndex]
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		Version:       c.version,
		TestID:        c.test.ID,
		AttemptID:     c.attempt.ID,
		Title:         c.test.Title,
		QuestionCount: len(c.test.Questions),
		CurrentIndex:  c.current,
		Answers:       c.answers.Answers(),
		Unanswered:    c.answers.Unanswered(),
		Remaining:     c.remaining,
		Clock:         FormatClock(c.remaining),
		Timed:         c.test.TimeLimitSeconds() > 0,
		Timer:         c.timer,
		Submission:    c.state,
		Result:        c.result,
		Err:           c.lastErr,
	}
	if c.current < len(c.test.Questions) {
		snap.Question = c.test.Questions[c.current]
	}
	return snap
}

// queueLocked stamps ev with a new version and snapshot and queues it for
// delivery. The caller must call flush after releasing mu.
func (c *Controller) queueLocked(ev Event) Event {
	c.version++
	ev.Snapshot = c.snapshotLocked()
	if len(c.listeners) > 0 {
		c.events = append(c.events, ev)
	}
	return ev
}

// flush delivers queued events. Only one goroutine delivers at a time; events
// queued meanwhile by others are picked up by that goroutine before it stops.
func (c *Controller) flush() {
	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	for len(c.events) > 0 {
		ev := c.events[0]
		c.events[0] = Event{}
		c.events = c.events[1:]
		c.mu.Unlock()

		for _, l := range c.listeners {
			l(ev)
		}

		c.mu.Lock()
	}
	c.draining = false
	c.mu.Unlock()
}
