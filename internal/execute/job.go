package execute

import (
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind separates user-facing run commands from dependency installs.
type Kind string

const (
	KindRun     Kind = "run"
	KindInstall Kind = "install"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// CancelledExitCode is the sentinel exit code recorded for jobs that were
// cancelled or never produced a real one.
const CancelledExitCode = -1

// LogLine is one timestamped line of merged stdout and stderr.
type LogLine struct {
	Time time.Time
	Text string
}

// Job is one command execution with its captured output.
type Job struct {
	ID        string
	Kind      Kind
	Command   string // As submitted
	Rewritten string // After virtualenv rewriting

	mu       sync.RWMutex
	status   Status
	exitCode int
	errMsg   string
	started  time.Time
	finished time.Time
	lines    []LogLine
	timedOut bool
	proc     *os.Process
	done     chan struct{}
	doneOnce sync.Once
}

// markDone closes the done channel exactly once.
func (j *Job) markDone() {
	j.doneOnce.Do(func() { close(j.done) })
}

func newJob(kind Kind, command string) *Job {
	return &Job{
		ID:      uuid.NewString(),
		Kind:    kind,
		Command: command,
		status:  StatusQueued,
		done:    make(chan struct{}),
	}
}

// Status returns the job's current status.
func (j *Job) Status() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// ExitCode returns the recorded exit code. Meaningful only once terminal.
func (j *Job) ExitCode() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.exitCode
}

// Err returns the failure description, empty on success.
func (j *Job) Err() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.errMsg
}

// Lines returns a copy of the captured output lines in arrival order.
func (j *Job) Lines() []LogLine {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]LogLine, len(j.lines))
	copy(out, j.lines)
	return out
}

// Done is closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Duration returns the job's wall-clock runtime so far.
func (j *Job) Duration() time.Duration {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.started.IsZero() {
		return 0
	}
	if j.finished.IsZero() {
		return time.Since(j.started)
	}
	return j.finished.Sub(j.started)
}

func (j *Job) terminal() bool {
	switch j.status {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

func (j *Job) appendLine(text string) LogLine {
	line := LogLine{Time: time.Now(), Text: text}
	j.mu.Lock()
	j.lines = append(j.lines, line)
	j.mu.Unlock()
	return line
}

// markRunning records the started process. Returns false when the job was
// cancelled before it got to run; the caller should kill the process.
func (j *Job) markRunning(rewritten string, proc *os.Process) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Rewritten = rewritten
	j.proc = proc
	j.started = time.Now()
	if j.terminal() {
		return false
	}
	j.status = StatusRunning
	return true
}

// markCancelled flips the job to cancelled unless it already finished.
// Returns the process to signal, if any.
func (j *Job) markCancelled() (*os.Process, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.terminal() {
		return nil, false
	}
	j.status = StatusCancelled
	j.exitCode = CancelledExitCode
	j.errMsg = "cancelled"
	return j.proc, true
}

func (j *Job) markTimedOut() *os.Process {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.terminal() {
		return nil
	}
	j.timedOut = true
	return j.proc
}

// finalize records the outcome of Wait. Cancellation takes precedence over
// whatever the killed process reported.
func (j *Job) finalize(exitCode int, runErr error) Status {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.finished = time.Now()
	if j.status == StatusCancelled {
		return j.status
	}

	j.exitCode = exitCode
	switch {
	case j.timedOut:
		j.status = StatusFailed
		j.errMsg = "process timed out"
	case runErr != nil:
		j.status = StatusFailed
		j.errMsg = runErr.Error()
	case exitCode != 0:
		j.status = StatusFailed
		j.errMsg = "non-zero exit"
	default:
		j.status = StatusSucceeded
	}
	return j.status
}
