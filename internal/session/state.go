package session

// SubmissionState tracks the single submission a session may make.
type SubmissionState int

const (
	NotSubmitted SubmissionState = iota
	Submitting
	Submitted
	Failed
)

func (s SubmissionState) String() string {
	switch s {
	case Submitting:
		return "submitting"
	case Submitted:
		return "submitted"
	case Failed:
		return "failed"
	default:
		return "not_submitted"
	}
}

// TimerState is the countdown state: Idle -> Running -> {Expired, Stopped}.
type TimerState int

const (
	TimerIdle TimerState = iota
	TimerRunning
	TimerExpired
	TimerStopped
)

func (s TimerState) String() string {
	switch s {
	case TimerRunning:
		return "running"
	case TimerExpired:
		return "expired"
	case TimerStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Trigger says who asked for a submission.
type Trigger int

const (
	Manual Trigger = iota
	Timeout
)

func (t Trigger) String() string {
	if t == Timeout {
		return "timeout"
	}
	return "manual"
}
