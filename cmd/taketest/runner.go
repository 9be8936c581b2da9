package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ai-evaluator/testtaker/internal/model"
	"github.com/ai-evaluator/testtaker/internal/report"
	"github.com/ai-evaluator/testtaker/internal/session"
)

var errQuit = errors.New("quit without submitting")

// runner drives one session from terminal input until it is submitted or the
// student quits.
type runner struct {
	ctrl   *session.Controller
	lines  <-chan string
	events <-chan session.Event
	out    io.Writer

	confirming bool
	submitting bool
}

// eventSink adapts session events to a channel for the runner. Ticks are
// dropped when the runner is busy; everything else is delivered.
func eventSink(ch chan<- session.Event) session.Listener {
	return func(ev session.Event) {
		switch ev.Kind {
		case session.EventExpired, session.EventSubmitted, session.EventSubmitFailed:
			ch <- ev
		}
	}
}

func (r *runner) run(ctx context.Context) (*model.Attempt, error) {
	r.render()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case ev := <-r.events:
			switch ev.Kind {
			case session.EventExpired:
				r.confirming = false
				r.submitting = true
				fmt.Fprintln(r.out, "\nTime is up! Submitting your answers...")
			case session.EventSubmitted:
				return ev.Snapshot.Result, nil
			case session.EventSubmitFailed:
				r.submitting = false
				fmt.Fprintf(r.out, "\n%v\nType s to try again.\n", ev.Err)
				r.prompt()
			}

		case line, ok := <-r.lines:
			if !ok {
				return nil, errQuit
			}
			if err := r.handle(ctx, line); err != nil {
				return nil, err
			}
		}
	}
}

func (r *runner) handle(ctx context.Context, line string) error {
	if r.confirming {
		r.confirming = false
		if answer := strings.ToLower(strings.TrimSpace(line)); answer == "y" || answer == "yes" {
			r.submit(ctx)
		} else {
			fmt.Fprintln(r.out, "Submission cancelled.")
			r.prompt()
		}
		return nil
	}
	if r.submitting {
		fmt.Fprintln(r.out, "Submitting, please wait...")
		return nil
	}

	cmd, err := parseCommand(line)
	if err != nil {
		fmt.Fprintln(r.out, err)
		r.prompt()
		return nil
	}

	switch cmd.kind {
	case cmdOption:
		if err := r.answerOption(cmd.n - 1); err != nil {
			fmt.Fprintln(r.out, err)
			r.prompt()
			return nil
		}
	case cmdText:
		if err := r.answerText(cmd.text); err != nil {
			fmt.Fprintln(r.out, err)
			r.prompt()
			return nil
		}
	case cmdClear:
		r.ctrl.RecordAnswer(r.ctrl.CurrentIndex(), model.Unanswered())
	case cmdNext:
		r.ctrl.Next()
	case cmdPrevious:
		r.ctrl.Previous()
	case cmdGoTo:
		r.ctrl.GoTo(cmd.n - 1)
	case cmdSubmit:
		if n := r.ctrl.UnansweredCount(); n > 0 {
			r.confirming = true
			fmt.Fprintf(r.out, "You have %d unanswered question(s). Submit anyway? [y/N] ", n)
			return nil
		}
		r.submit(ctx)
		return nil
	case cmdQuit:
		return errQuit
	case cmdHelp:
		fmt.Fprintln(r.out, helpText)
		r.prompt()
		return nil
	}

	r.render()
	return nil
}

func (r *runner) answerOption(option int) error {
	index := r.ctrl.CurrentIndex()
	q := r.ctrl.Test().Questions[index]
	if q.Kind() != model.QuestionTypeMCQ {
		return errors.New("this question needs a written answer: t <your answer>")
	}
	if option >= len(q.Options) {
		return fmt.Errorf("choose an option between 1 and %d", len(q.Options))
	}
	r.ctrl.RecordAnswer(index, model.OptionAnswer(option))
	return nil
}

func (r *runner) answerText(text string) error {
	index := r.ctrl.CurrentIndex()
	if r.ctrl.Test().Questions[index].Kind() != model.QuestionTypeParagraph {
		return errors.New("this question is multiple choice: type an option number")
	}
	if text == "" {
		r.ctrl.RecordAnswer(index, model.Unanswered())
		return nil
	}
	r.ctrl.RecordAnswer(index, model.TextAnswer(text))
	return nil
}

// submit starts a manual submission; its outcome arrives as a session event.
func (r *runner) submit(ctx context.Context) {
	r.submitting = true
	fmt.Fprintln(r.out, "Submitting...")
	go func() {
		_, _ = r.ctrl.Submit(ctx, session.Manual)
	}()
}

func (r *runner) render() {
	snap := r.ctrl.Snapshot()
	q := snap.Question

	fmt.Fprintf(r.out, "\n%s", snap.Title)
	if snap.Timed {
		fmt.Fprintf(r.out, "   Time left: %s", snap.Clock)
	}
	fmt.Fprintf(r.out, "\nQuestion %d of %d   %s\n\n", snap.CurrentIndex+1, snap.QuestionCount, answeredMarkers(snap))
	fmt.Fprintln(r.out, q.Text)

	current := snap.CurrentAnswer()
	if q.Kind() == model.QuestionTypeParagraph {
		if text, ok := current.TextValue(); ok {
			fmt.Fprintf(r.out, "\nYour answer: %s\n", text)
		} else {
			fmt.Fprintln(r.out, "\n(not answered: t <your answer>)")
		}
	} else {
		selected, hasSelection := current.OptionIndex()
		for i, opt := range q.Options {
			marker := " "
			if hasSelection && selected == i {
				marker = ">"
			}
			fmt.Fprintf(r.out, " %s %d) %s. %s\n", marker, i+1, report.OptionLetter(i), opt)
		}
	}
	r.prompt()
}

func (r *runner) prompt() {
	snap := r.ctrl.Snapshot()
	if snap.Timed {
		fmt.Fprintf(r.out, "[%s] > ", snap.Clock)
		return
	}
	fmt.Fprint(r.out, "> ")
}

// answeredMarkers renders one box per question: [x] answered, [ ] not, with
// the current question in angle brackets.
func answeredMarkers(snap session.Snapshot) string {
	var b strings.Builder
	for i, a := range snap.Answers {
		mark := " "
		if a.IsAnswered() {
			mark = "x"
		}
		if i == snap.CurrentIndex {
			fmt.Fprintf(&b, "<%s>", mark)
		} else {
			fmt.Fprintf(&b, "[%s]", mark)
		}
	}
	return b.String()
}
