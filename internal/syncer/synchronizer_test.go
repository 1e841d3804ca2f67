package syncer

import (
	"errors"
	"testing"

	"forge/internal/event"
	"forge/internal/project"
)

func newTestSync(t *testing.T) (*Synchronizer, *project.Project) {
	t.Helper()
	proj := project.New(t.TempDir())
	bus := event.NewBus()
	t.Cleanup(bus.Close)
	return New(proj, bus), proj
}

func TestCommitBumpsVersionExactlyOnce(t *testing.T) {
	s, proj := newTestSync(t)

	if err := s.Begin("t1", "s1", "app.py"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.ApplyChunk("t1", "x = "); err != nil {
		t.Fatalf("ApplyChunk: %v", err)
	}
	if err := s.ApplyChunk("t1", "1\n"); err != nil {
		t.Fatalf("ApplyChunk: %v", err)
	}

	version, err := s.Commit("t1")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if version != 1 {
		t.Errorf("version = %d, want 1", version)
	}

	node, _ := proj.Get("app.py")
	if node.Content != "x = 1\n" {
		t.Errorf("content = %q", node.Content)
	}
	if node.Status != project.StatusComplete {
		t.Errorf("status = %s, want complete", node.Status)
	}

	// A second task over the same path commits version 2.
	if err := s.Begin("t2", "s1", "app.py"); err != nil {
		t.Fatalf("Begin t2: %v", err)
	}
	_ = s.ApplyChunk("t2", "x = 2\n")
	if version, err = s.Commit("t2"); err != nil || version != 2 {
		t.Fatalf("second commit version = %d, err = %v, want 2", version, err)
	}
}

func TestBeginRejectsHeldPath(t *testing.T) {
	s, _ := newTestSync(t)

	if err := s.Begin("t1", "s1", "app.py"); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	err := s.Begin("t2", "s1", "app.py")
	var lockErr *ErrPathLocked
	if !errors.As(err, &lockErr) {
		t.Fatalf("err = %v, want ErrPathLocked", err)
	}
	if lockErr.Holder != "t1" {
		t.Errorf("holder = %s, want t1", lockErr.Holder)
	}
}

func TestPartialOutputNeverVisible(t *testing.T) {
	s, proj := newTestSync(t)

	_ = s.Begin("t1", "s1", "app.py")
	_ = s.ApplyChunk("t1", "garbled half of a fi")

	node, _ := proj.Get("app.py")
	if node.Content != "" || node.Version != 0 {
		t.Errorf("buffered output leaked into the node: %+v", node)
	}
}

func TestRollbackRestoresPriorStatusAndIsIdempotent(t *testing.T) {
	s, proj := newTestSync(t)

	// First commit establishes a baseline.
	_ = s.Begin("t1", "s1", "app.py")
	_ = s.ApplyChunk("t1", "x = 1\n")
	if _, err := s.Commit("t1"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	// Second task starts, then rolls back.
	_ = s.Begin("t2", "s1", "app.py")
	_ = s.ApplyChunk("t2", "broken")
	s.Rollback("t2", "stream failed")
	s.Rollback("t2", "again") // No-op

	node, _ := proj.Get("app.py")
	if node.Content != "x = 1\n" || node.Version != 1 {
		t.Errorf("rollback touched committed state: %+v", node)
	}
	if node.Status != project.StatusComplete {
		t.Errorf("status = %s, want complete restored", node.Status)
	}
	if _, held := s.Holder("app.py"); held {
		t.Error("lock not released after rollback")
	}
}

func TestRollbackAfterCommitIsNoOp(t *testing.T) {
	s, proj := newTestSync(t)

	_ = s.Begin("t1", "s1", "app.py")
	_ = s.ApplyChunk("t1", "x = 1\n")
	if _, err := s.Commit("t1"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	s.Rollback("t1", "late cancel")

	node, _ := proj.Get("app.py")
	if node.Version != 1 || node.Status != project.StatusComplete {
		t.Errorf("rollback after commit changed state: %+v", node)
	}
}

func TestCommitValidationFailureKeepsPriorContent(t *testing.T) {
	s, proj := newTestSync(t)

	_ = s.Begin("t1", "s1", "app.py")
	_ = s.ApplyChunk("t1", "x = 1\n")
	if _, err := s.Commit("t1"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	_ = s.Begin("t2", "s1", "app.py")
	_ = s.ApplyChunk("t2", "x = foo(1, 2\n")

	_, err := s.Commit("t2")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}

	node, _ := proj.Get("app.py")
	if node.Content != "x = 1\n" || node.Version != 1 {
		t.Errorf("failed commit touched content: %+v", node)
	}
	if node.Status != project.StatusError {
		t.Errorf("status = %s, want error", node.Status)
	}
	if _, held := s.Holder("app.py"); held {
		t.Error("lock not released after failed commit")
	}
}

func TestCommitSanitizesFences(t *testing.T) {
	s, proj := newTestSync(t)

	_ = s.Begin("t1", "s1", "app.py")
	_ = s.ApplyChunk("t1", "```python\nx = 1\n```")
	if _, err := s.Commit("t1"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	node, _ := proj.Get("app.py")
	if node.Content != "x = 1\n" {
		t.Errorf("content = %q, want fences stripped", node.Content)
	}
}

func TestCommittedEventCarriesVersionAndDiff(t *testing.T) {
	proj := project.New(t.TempDir())
	bus := event.NewBus()
	defer bus.Close()
	events, unsub := bus.Subscribe()
	defer unsub()

	s := New(proj, bus)

	_ = s.Begin("t1", "s1", "app.py")
	_ = s.ApplyChunk("t1", "x = 1\n")
	_, _ = s.Commit("t1")

	_ = s.Begin("t2", "s1", "app.py")
	_ = s.ApplyChunk("t2", "x = 2\n")
	_, _ = s.Commit("t2")

	var commits []event.Event
	for len(commits) < 2 {
		ev := <-events
		if ev.Type == event.TypeFileCommitted {
			commits = append(commits, ev)
		}
	}

	if commits[0].Version != 1 || commits[1].Version != 2 {
		t.Errorf("versions = %d, %d, want 1, 2", commits[0].Version, commits[1].Version)
	}
	if commits[0].Text != "" {
		t.Errorf("first commit diff = %q, want empty for a new file", commits[0].Text)
	}
	if commits[1].Text == "" {
		t.Error("second commit carries no diff")
	}
}
