package execute

import (
	"bufio"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"forge/internal/config"
	"forge/internal/event"
	"forge/internal/logging"
)

// ErrExecutorBusy is returned when a run command is submitted while another
// run command is still active. Run jobs are exclusive; installs queue.
var ErrExecutorBusy = errors.New("a run command is already in progress")

// ErrUnknownJob is returned for operations on job ids the executor has never
// seen.
var ErrUnknownJob = errors.New("unknown job")

// Executor runs project commands in the project root, one run job at a time.
// Install jobs are serialized through a FIFO queue so concurrent dependency
// installs never race over the same virtualenv.
type Executor struct {
	root    string
	timeout time.Duration
	grace   time.Duration
	bus     *event.Bus

	mu         sync.Mutex
	jobs       map[string]*Job
	active     *Job
	queue      []*Job
	installing bool
}

// New creates an executor rooted at the project directory.
func New(cfg config.ExecutorConfig, root string, bus *event.Bus) *Executor {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultJobTimeout
	}
	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = config.DefaultGracePeriod
	}
	return &Executor{
		root:    root,
		timeout: timeout,
		grace:   grace,
		bus:     bus,
		jobs:    make(map[string]*Job),
	}
}

// Job returns the job with the given id.
func (e *Executor) Job(id string) (*Job, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	job, ok := e.jobs[id]
	return job, ok
}

// Submit registers a command for execution and returns its job. Run jobs
// start immediately or fail with ErrExecutorBusy; install jobs wait their
// turn in FIFO order.
func (e *Executor) Submit(kind Kind, command string) (*Job, error) {
	job := newJob(kind, command)

	e.mu.Lock()
	switch kind {
	case KindRun:
		if e.active != nil && !e.active.terminal() {
			e.mu.Unlock()
			return nil, ErrExecutorBusy
		}
		e.active = job
		e.jobs[job.ID] = job
		e.mu.Unlock()

		e.publishStatus(job)
		go func() {
			e.run(job)
			e.mu.Lock()
			if e.active == job {
				e.active = nil
			}
			e.mu.Unlock()
		}()

	case KindInstall:
		e.jobs[job.ID] = job
		e.queue = append(e.queue, job)
		start := !e.installing
		if start {
			e.installing = true
		}
		e.mu.Unlock()

		e.publishStatus(job)
		if start {
			go e.drainInstalls()
		}

	default:
		e.mu.Unlock()
		return nil, errors.New("unknown job kind " + string(kind))
	}

	return job, nil
}

// Cancel stops a job: SIGTERM to the process group, then SIGKILL after the
// grace period if it lingers. Cancelling a finished job is a no-op.
func (e *Executor) Cancel(id string) error {
	e.mu.Lock()
	job, ok := e.jobs[id]
	e.mu.Unlock()
	if !ok {
		return ErrUnknownJob
	}

	proc, cancelled := job.markCancelled()
	if !cancelled {
		return nil
	}

	if proc == nil {
		// Still queued; never started. Mark terminal now.
		job.markDone()
		e.publishStatus(job)
		return nil
	}

	e.killGroup(job, proc)
	return nil
}

// drainInstalls runs queued install jobs one at a time until the queue is
// empty.
func (e *Executor) drainInstalls() {
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			e.installing = false
			e.mu.Unlock()
			return
		}
		job := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()

		if job.Status() == StatusCancelled {
			continue
		}
		e.run(job)
	}
}

// run executes one job to completion, streaming merged stdout and stderr
// line by line.
func (e *Executor) run(job *Job) {
	rewritten := RewriteCommand(e.root, job.Command)

	cmd := exec.Command("sh", "-c", rewritten)
	cmd.Dir = e.root
	cmd.Env = buildEnv(e.root)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		job.finalize(CancelledExitCode, err)
		job.markDone()
		e.publishStatus(job)
		logging.Warn("command failed to start", "job", job.ID, "command", job.Command, "error", err)
		return
	}

	if !job.markRunning(rewritten, cmd.Process) {
		// Cancelled before it ran; tear the process down immediately.
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	} else {
		e.publishStatus(job)
		logging.Info("command started", "job", job.ID, "kind", string(job.Kind), "command", rewritten)
	}

	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := job.appendLine(scanner.Text())
			e.bus.Publish(event.Event{
				Type:      event.TypeJobOutput,
				JobID:     job.ID,
				Timestamp: line.Time,
				Text:      line.Text,
			})
		}
	}()

	timer := time.AfterFunc(e.timeout, func() {
		if proc := job.markTimedOut(); proc != nil {
			logging.Warn("command timed out", "job", job.ID, "timeout", e.timeout.String())
			e.killGroup(job, proc)
		}
	})

	err := cmd.Wait()
	timer.Stop()
	pw.Close()
	<-scanDone

	exitCode := 0
	if err != nil {
		exitCode = CancelledExitCode
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
			err = nil // Non-zero exit is an outcome, not an execution error
		}
	}

	status := job.finalize(exitCode, err)
	job.markDone()
	e.publishStatus(job)
	logging.Info("command finished", "job", job.ID, "status", string(status), "exit", job.ExitCode())
}

func (e *Executor) publishStatus(job *Job) {
	e.bus.Publish(event.Event{
		Type:   event.TypeJobStatus,
		JobID:  job.ID,
		Status: string(job.Status()),
		Error:  job.Err(),
	})
}

// killGroup escalates SIGTERM to SIGKILL on the whole process group after
// the grace period. Negative pid targets the group, so children spawned by
// the shell die with it.
func (e *Executor) killGroup(job *Job, proc *os.Process) {
	_ = syscall.Kill(-proc.Pid, syscall.SIGTERM)

	go func() {
		select {
		case <-job.Done():
		case <-time.After(e.grace):
			_ = syscall.Kill(-proc.Pid, syscall.SIGKILL)
		}
	}()
}
