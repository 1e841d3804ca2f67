package orch

import (
	"sync"

	"github.com/google/uuid"

	"forge/internal/plan"
)

// SessionStatus is the lifecycle state of a build session.
type SessionStatus string

const (
	SessionPlanning        SessionStatus = "planning"
	SessionRunning         SessionStatus = "running"
	SessionReviewing       SessionStatus = "reviewing"
	SessionCompleted       SessionStatus = "completed"
	SessionPartiallyFailed SessionStatus = "partially_failed"
	SessionCancelled       SessionStatus = "cancelled"
	SessionFailed          SessionStatus = "failed"
)

// TaskStatus is the lifecycle state of one agent task.
type TaskStatus string

const (
	TaskQueued     TaskStatus = "queued"
	TaskDispatched TaskStatus = "dispatched"
	TaskStreaming  TaskStatus = "streaming"
	TaskCommitted  TaskStatus = "committed"
	TaskFailed     TaskStatus = "failed"
	TaskSkipped    TaskStatus = "skipped"
)

// AgentTask is one unit of generation work: a single file owned by a single
// agent for the duration of the session.
type AgentTask struct {
	ID        string
	Path      string
	Purpose   string
	DependsOn []string
	Scaffold  bool
	Status    TaskStatus
	Retries   int
	Err       string
}

// BuildSession tracks one build from plan to finish. Tasks are keyed by path;
// a path is owned by exactly one task per session.
type BuildSession struct {
	ID      string
	Mode    plan.Mode
	Request string

	mu     sync.Mutex
	status SessionStatus
	tasks  map[string]*AgentTask
	order  []string // Manifest order
}

func newSession(request string, mode plan.Mode) *BuildSession {
	return &BuildSession{
		ID:      uuid.NewString(),
		Mode:    mode,
		Request: request,
		status:  SessionPlanning,
		tasks:   make(map[string]*AgentTask),
	}
}

func (s *BuildSession) addTasks(manifest plan.Manifest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range manifest {
		s.tasks[e.Path] = &AgentTask{
			ID:        uuid.NewString(),
			Path:      e.Path,
			Purpose:   e.Purpose,
			DependsOn: e.DependsOn,
			Scaffold:  e.Scaffold,
			Status:    TaskQueued,
		}
		s.order = append(s.order, e.Path)
	}
}

// Status returns the session's current status.
func (s *BuildSession) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *BuildSession) setStatus(status SessionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Task returns a copy of the task owning path.
func (s *BuildSession) Task(path string) (AgentTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[path]
	if !ok {
		return AgentTask{}, false
	}
	return *task, true
}

// Tasks returns copies of all tasks in manifest order.
func (s *BuildSession) Tasks() []AgentTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]AgentTask, 0, len(s.order))
	for _, path := range s.order {
		out = append(out, *s.tasks[path])
	}
	return out
}

func (s *BuildSession) setTaskStatus(path string, status TaskStatus, errMsg string) AgentTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	task := s.tasks[path]
	task.Status = status
	if errMsg != "" {
		task.Err = errMsg
	}
	return *task
}

func (s *BuildSession) setTaskRetries(path string, retries int) AgentTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	task := s.tasks[path]
	task.Retries = retries
	return *task
}

// Summary counts tasks by outcome.
type Summary struct {
	Committed int
	Failed    int
	Skipped   int
	Total     int
}

// Summarize tallies task outcomes for the session.
func (s *BuildSession) Summarize() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{Total: len(s.tasks)}
	for _, task := range s.tasks {
		switch task.Status {
		case TaskCommitted:
			sum.Committed++
		case TaskFailed:
			sum.Failed++
		case TaskSkipped:
			sum.Skipped++
		}
	}
	return sum
}
