package plan

import (
	"errors"
	"reflect"
	"testing"
)

func TestSortOrdersByDependency(t *testing.T) {
	m := Manifest{
		{Path: "app.py", DependsOn: []string{"models.py", "storage.py"}},
		{Path: "storage.py", DependsOn: []string{"models.py"}},
		{Path: "models.py"},
	}

	sorted, err := m.Sort()
	if err != nil {
		t.Fatalf("Sort: %v", err)
	}

	want := []string{"models.py", "storage.py", "app.py"}
	if !reflect.DeepEqual(sorted.Paths(), want) {
		t.Errorf("order = %v, want %v", sorted.Paths(), want)
	}
}

func TestSortBreaksTiesLexicographically(t *testing.T) {
	m := Manifest{
		{Path: "c.py"},
		{Path: "a.py"},
		{Path: "b.py"},
	}

	sorted, err := m.Sort()
	if err != nil {
		t.Fatalf("Sort: %v", err)
	}

	want := []string{"a.py", "b.py", "c.py"}
	if !reflect.DeepEqual(sorted.Paths(), want) {
		t.Errorf("order = %v, want %v", sorted.Paths(), want)
	}
}

func TestSortTreatsExternalDepsAsSatisfied(t *testing.T) {
	m := Manifest{
		{Path: "new.py", DependsOn: []string{"existing.py"}},
	}

	sorted, err := m.Sort()
	if err != nil {
		t.Fatalf("Sort: %v", err)
	}
	if len(sorted) != 1 || sorted[0].Path != "new.py" {
		t.Errorf("got %v, want [new.py]", sorted.Paths())
	}
}

func TestSortRejectsCycle(t *testing.T) {
	m := Manifest{
		{Path: "a.py", DependsOn: []string{"b.py"}},
		{Path: "b.py", DependsOn: []string{"a.py"}},
	}

	_, err := m.Sort()
	var perr *PlanningError
	if !errors.As(err, &perr) {
		t.Fatalf("Sort error = %v, want PlanningError", err)
	}
}

func TestSortRejectsSelfDependency(t *testing.T) {
	m := Manifest{{Path: "a.py", DependsOn: []string{"a.py"}}}

	var perr *PlanningError
	if _, err := m.Sort(); !errors.As(err, &perr) {
		t.Fatalf("want PlanningError for self-dependency")
	}
}

func TestSortRejectsDuplicateEntries(t *testing.T) {
	m := Manifest{{Path: "a.py"}, {Path: "a.py"}}

	var perr *PlanningError
	if _, err := m.Sort(); !errors.As(err, &perr) {
		t.Fatalf("want PlanningError for duplicate entry")
	}
}
