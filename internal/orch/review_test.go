package orch

import (
	"context"
	"testing"

	"forge/internal/client"
	"forge/internal/event"
	"forge/internal/plan"
	"forge/internal/project"
	"forge/internal/syncer"
)

func newReviewOrchestrator(t *testing.T, c client.Client, review bool) (*Orchestrator, *project.Project) {
	t.Helper()

	proj := project.New(t.TempDir())
	bus := event.NewBus()
	t.Cleanup(bus.Close)

	cfg := testConfig()
	cfg.Build.Review = review

	sy := syncer.New(proj, bus)
	planner := plan.NewPlanner(c, nil, 0)
	o := New(cfg, c, proj, sy, planner, nil, nil, bus)
	return o, proj
}

func TestReviewPassAppliesSurgicalFix(t *testing.T) {
	c := newMockClient(twoFilePlan, func(spec client.FileSpec, call int) (string, error) {
		return "# header\nx = 1\n", nil
	})
	c.reviewResp = `{"fixes": [
		{"filename": "app.py", "description": "use the model", "start_line": 2, "end_line": 2, "corrected_code": "x = 2"}
	]}`
	o, proj := newReviewOrchestrator(t, c, true)

	session, err := o.StartBuild(context.Background(), "build")
	if err != nil {
		t.Fatalf("StartBuild: %v", err)
	}
	if session.Status() != SessionCompleted {
		t.Fatalf("status = %s, want completed", session.Status())
	}
	if c.reviews() != 1 {
		t.Errorf("review calls = %d, want 1", c.reviews())
	}

	node, _ := proj.Get("app.py")
	if node.Content != "# header\nx = 2\n" {
		t.Errorf("fixed content = %q", node.Content)
	}
	// A review fix is a real commit: version bumps past the generation.
	if node.Version != 2 {
		t.Errorf("app.py version = %d, want 2", node.Version)
	}

	untouched, _ := proj.Get("models.py")
	if untouched.Version != 1 {
		t.Errorf("models.py version = %d, want untouched 1", untouched.Version)
	}
}

func TestReviewWithNoIssuesLeavesFilesAlone(t *testing.T) {
	c := newMockClient(twoFilePlan, func(spec client.FileSpec, call int) (string, error) {
		return "x = 1\n", nil
	})
	o, proj := newReviewOrchestrator(t, c, true)

	session, err := o.StartBuild(context.Background(), "build")
	if err != nil {
		t.Fatalf("StartBuild: %v", err)
	}
	if session.Status() != SessionCompleted {
		t.Fatalf("status = %s, want completed", session.Status())
	}
	if c.reviews() != 1 {
		t.Errorf("review calls = %d, want 1", c.reviews())
	}
	if len(c.reviewFiles) != 2 {
		t.Errorf("reviewed files = %d, want 2", len(c.reviewFiles))
	}

	for _, path := range []string{"models.py", "app.py"} {
		node, _ := proj.Get(path)
		if node.Version != 1 {
			t.Errorf("%s version = %d, want 1", path, node.Version)
		}
	}
}

func TestReviewDisabledSkipsTheCall(t *testing.T) {
	c := newMockClient(twoFilePlan, func(spec client.FileSpec, call int) (string, error) {
		return "x = 1\n", nil
	})
	o, _ := newReviewOrchestrator(t, c, false)

	session, err := o.StartBuild(context.Background(), "build")
	if err != nil {
		t.Fatalf("StartBuild: %v", err)
	}
	if session.Status() != SessionCompleted {
		t.Fatalf("status = %s, want completed", session.Status())
	}
	if c.reviews() != 0 {
		t.Errorf("review calls = %d, want 0", c.reviews())
	}
}

func TestUnusableReviewResponseKeepsGeneratedCode(t *testing.T) {
	c := newMockClient(twoFilePlan, func(spec client.FileSpec, call int) (string, error) {
		return "x = 1\n", nil
	})
	c.reviewResp = "the reviewer rambled without any structure"
	o, proj := newReviewOrchestrator(t, c, true)

	session, err := o.StartBuild(context.Background(), "build")
	if err != nil {
		t.Fatalf("StartBuild: %v", err)
	}
	if session.Status() != SessionCompleted {
		t.Fatalf("status = %s, want completed", session.Status())
	}

	node, _ := proj.Get("app.py")
	if node.Content != "x = 1\n" || node.Version != 1 {
		t.Errorf("app.py = %+v, want generated content untouched", node)
	}
}

func TestReviewFixOutsideSessionIsDiscarded(t *testing.T) {
	c := newMockClient(twoFilePlan, func(spec client.FileSpec, call int) (string, error) {
		return "x = 1\n", nil
	})
	c.reviewResp = `{"fixes": [
		{"filename": "ghost.py", "description": "edit a stranger", "start_line": 1, "end_line": 1, "corrected_code": "y = 1"},
		{"filename": "app.py", "description": "out of range", "start_line": 40, "end_line": 41, "corrected_code": "y = 1"}
	]}`
	o, proj := newReviewOrchestrator(t, c, true)

	session, err := o.StartBuild(context.Background(), "build")
	if err != nil {
		t.Fatalf("StartBuild: %v", err)
	}
	if session.Status() != SessionCompleted {
		t.Fatalf("status = %s, want completed", session.Status())
	}

	if _, ok := proj.Get("ghost.py"); ok {
		t.Error("review fix created a file outside the session")
	}
	node, _ := proj.Get("app.py")
	if node.Content != "x = 1\n" || node.Version != 1 {
		t.Errorf("out-of-range fix touched the file: %+v", node)
	}
}

func TestReviewFixFailingValidationIsRejected(t *testing.T) {
	c := newMockClient(twoFilePlan, func(spec client.FileSpec, call int) (string, error) {
		return "x = 1\n", nil
	})
	c.reviewResp = `{"fixes": [
		{"filename": "app.py", "description": "break it", "start_line": 1, "end_line": 1, "corrected_code": "x = foo(1, 2"}
	]}`
	o, proj := newReviewOrchestrator(t, c, true)

	session, err := o.StartBuild(context.Background(), "build")
	if err != nil {
		t.Fatalf("StartBuild: %v", err)
	}
	if session.Status() != SessionCompleted {
		t.Fatalf("status = %s, want completed", session.Status())
	}

	node, _ := proj.Get("app.py")
	if node.Content != "x = 1\n" || node.Version != 1 {
		t.Errorf("invalid fix replaced committed content: %+v", node)
	}
}

func TestSpliceLines(t *testing.T) {
	content := "a\nb\nc\n"

	tests := []struct {
		name        string
		start, end  int
		replacement string
		want        string
		wantOK      bool
	}{
		{"replace middle line", 2, 2, "B", "a\nB\nc\n", true},
		{"replace a range", 1, 2, "x\ny", "x\ny\nc\n", true},
		{"multi-line replacement grows the file", 2, 2, "b1\nb2\nb3", "a\nb1\nb2\nb3\nc\n", true},
		{"empty replacement deletes the lines", 2, 3, "", "a\n", true},
		{"end clamped to last line", 2, 99, "tail", "a\ntail\n", true},
		{"start past the end rejected", 4, 4, "x", "", false},
		{"zero start rejected", 0, 1, "x", "", false},
		{"inverted range rejected", 3, 2, "x", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := spliceLines(content, tt.start, tt.end, tt.replacement)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseReviewFixes(t *testing.T) {
	raw := "Review done.\n```json\n" +
		`{"fixes":[{"filename":"a.py","start_line":1,"end_line":2,"corrected_code":"x"}]}` +
		"\n```"
	fixes, err := parseReviewFixes(raw)
	if err != nil {
		t.Fatalf("parseReviewFixes: %v", err)
	}
	if len(fixes) != 1 || fixes[0].Filename != "a.py" || fixes[0].EndLine != 2 {
		t.Errorf("fixes = %+v", fixes)
	}

	if _, err := parseReviewFixes("no structure here"); err == nil {
		t.Error("prose without JSON parsed as a review")
	}
}
