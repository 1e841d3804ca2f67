package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"forge/internal/client"
	"forge/internal/logging"
	"forge/internal/rag"
)

// Mode selects between building from scratch and changing an existing project.
type Mode string

const (
	ModeNew       Mode = "new"
	ModeIterative Mode = "iterative"
)

// Planner turns a natural-language request into an ordered build manifest.
type Planner struct {
	client client.Client
	index  *rag.Index // Optional; used to scope iterative plans
	topK   int
}

// NewPlanner creates a planner. index may be nil when no knowledge base is
// available; iterative plans then consider the whole file tree.
func NewPlanner(c client.Client, index *rag.Index, topK int) *Planner {
	if topK <= 0 {
		topK = 5
	}
	return &Planner{client: c, index: index, topK: topK}
}

// CreatePlan produces a dependency-ordered manifest for the request.
// In iterative mode the manifest is a delta: it covers only files needing
// creation or modification, scoped by the knowledge index to the smallest
// relevant set of existing files.
func (p *Planner) CreatePlan(ctx context.Context, request string, files map[string]string, mode Mode) (Manifest, error) {
	pc := client.PlanContext{}

	relevant := map[string]bool{}
	if mode == ModeIterative && len(files) > 0 {
		pc.ExistingFiles, pc.RAGContext, relevant = p.scopeContext(ctx, request, files)
	}

	raw, err := p.client.Plan(ctx, request, pc)
	if err != nil {
		return nil, err
	}

	manifest, err := ParseManifest(raw)
	if err != nil {
		return nil, err
	}

	if mode == ModeIterative {
		manifest = p.restrictDelta(manifest, files, relevant)
		if len(manifest) == 0 {
			return nil, &PlanningError{Reason: "delta plan contains no applicable entries"}
		}
	}

	markScaffolds(manifest)

	return manifest.Sort()
}

// scopeContext queries the knowledge index for the smallest set of existing
// files relevant to the request.
func (p *Planner) scopeContext(ctx context.Context, request string, files map[string]string) (map[string]string, string, map[string]bool) {
	relevant := make(map[string]bool)

	if p.index == nil {
		// No index: every existing file is fair game.
		for path := range files {
			relevant[path] = true
		}
		return files, "", relevant
	}

	chunks, err := p.index.Query(ctx, request, p.topK)
	if err != nil {
		logging.Warn("knowledge query failed, planning against full tree", "error", err)
		for path := range files {
			relevant[path] = true
		}
		return files, "", relevant
	}

	scoped := make(map[string]string)
	var ragParts []string
	for _, chunk := range chunks {
		ragParts = append(ragParts, fmt.Sprintf("From %s:\n%s", chunk.Path, chunk.Content))
		if content, ok := files[chunk.Path]; ok {
			scoped[chunk.Path] = content
			relevant[chunk.Path] = true
		}
	}

	if len(scoped) == 0 {
		for path := range files {
			relevant[path] = true
		}
		return files, strings.Join(ragParts, "\n\n---\n\n"), relevant
	}

	return scoped, strings.Join(ragParts, "\n\n---\n\n"), relevant
}

// restrictDelta drops entries that would regenerate existing files outside
// the relevant set. Dropping is logged, never silent.
func (p *Planner) restrictDelta(manifest Manifest, files map[string]string, relevant map[string]bool) Manifest {
	out := make(Manifest, 0, len(manifest))
	for _, e := range manifest {
		_, exists := files[e.Path]
		if exists && !relevant[e.Path] {
			logging.Warn("dropping unrelated file from delta plan", "path", e.Path)
			continue
		}
		out = append(out, e)
	}
	return out
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

type manifestEnvelope struct {
	Manifest []Entry `json:"manifest"`
}

// ParseManifest extracts and validates the manifest JSON from raw model
// output, which may be wrapped in prose or markdown fences.
func ParseManifest(raw string) (Manifest, error) {
	match := jsonObjectRe.FindString(raw)
	if match == "" {
		return nil, &PlanningError{Reason: "no JSON object found in planner response"}
	}

	var env manifestEnvelope
	if err := json.Unmarshal([]byte(match), &env); err != nil {
		return nil, &PlanningError{Reason: fmt.Sprintf("invalid manifest JSON: %v", err)}
	}

	if len(env.Manifest) == 0 {
		return nil, &PlanningError{Reason: "planner returned an empty manifest"}
	}

	for i, e := range env.Manifest {
		if strings.TrimSpace(e.Path) == "" {
			return nil, &PlanningError{Reason: fmt.Sprintf("manifest entry %d has no path", i)}
		}
		if strings.Contains(e.Path, "..") || strings.HasPrefix(e.Path, "/") {
			return nil, &PlanningError{Reason: fmt.Sprintf("manifest entry %q escapes the project root", e.Path)}
		}
	}

	return Manifest(env.Manifest), nil
}

// markScaffolds flags boilerplate entries that need no generation call.
func markScaffolds(m Manifest) {
	for i, e := range m {
		switch {
		case e.Path == "requirements.txt",
			e.Path == ".gitignore",
			strings.HasSuffix(e.Path, "__init__.py"):
			m[i].Scaffold = true
		}
	}
}

// ScaffoldContent returns the locally produced content for a scaffold entry.
func ScaffoldContent(path string) string {
	switch {
	case path == "requirements.txt":
		return "pytest\n"
	case path == ".gitignore":
		return ".venv/\nvenv/\n__pycache__/\n*.py[co]\nrag_db/\n.env\n*.log\n"
	default:
		return ""
	}
}
