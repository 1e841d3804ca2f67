package client

import (
	"strings"
	"testing"
)

func TestBuildPlanPromptIncludesContext(t *testing.T) {
	pc := PlanContext{
		ExistingFiles: map[string]string{"models.py": "class User: pass\n"},
		RAGContext:    "From models.py:\nclass User",
	}

	prompt := BuildPlanPrompt("add an API", pc)

	for _, want := range []string{"add an API", "models.py", "RELEVANT CONTEXT", `"manifest"`} {
		if !strings.Contains(prompt, want) {
			t.Errorf("plan prompt missing %q", want)
		}
	}
}

func TestBuildGeneratePromptIncludesExisting(t *testing.T) {
	spec := FileSpec{Path: "api.py", Purpose: "HTTP handlers", Requires: []string{"models.py"}}
	gc := GenContext{
		Request:    "add an API",
		Interfaces: "- models.py: data model",
		Existing:   "old_content = True\n",
	}

	prompt := BuildGeneratePrompt(spec, gc)

	for _, want := range []string{"api.py", "HTTP handlers", "models.py", "old_content"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("generate prompt missing %q", want)
		}
	}
}

func TestBuildReviewPromptIncludesFilesAndSchema(t *testing.T) {
	files := map[string]string{"app.py": "x = 1\n", "models.py": "class User: pass\n"}

	prompt := BuildReviewPrompt("build a notes app", files)

	for _, want := range []string{"build a notes app", "app.py", "models.py", `"fixes"`, "corrected_code"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("review prompt missing %q", want)
		}
	}
}

func TestMarshalFilesIsDeterministic(t *testing.T) {
	files := map[string]string{"b.py": "b", "a.py": "a", "c.py": "c"}

	first := marshalFiles(files)
	for i := 0; i < 10; i++ {
		if marshalFiles(files) != first {
			t.Fatal("marshalFiles output varies across calls")
		}
	}

	if strings.Index(first, "a.py") > strings.Index(first, "b.py") {
		t.Error("paths not sorted")
	}
}
