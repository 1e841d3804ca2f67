package orch

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"forge/internal/logging"
)

// reviewFix is one surgical edit proposed by the architect's final review:
// replace lines StartLine..EndLine (1-based, inclusive) with CorrectedCode.
type reviewFix struct {
	Filename      string `json:"filename"`
	Description   string `json:"description"`
	StartLine     int    `json:"start_line"`
	EndLine       int    `json:"end_line"`
	CorrectedCode string `json:"corrected_code"`
}

type reviewEnvelope struct {
	Fixes []reviewFix `json:"fixes"`
}

var reviewJSONRe = regexp.MustCompile(`(?s)\{.*\}`)

// parseReviewFixes extracts the fix list from raw model output, which may be
// wrapped in prose or markdown fences.
func parseReviewFixes(raw string) ([]reviewFix, error) {
	match := reviewJSONRe.FindString(raw)
	if match == "" {
		return nil, fmt.Errorf("no JSON object found in review response")
	}

	var env reviewEnvelope
	if err := json.Unmarshal([]byte(match), &env); err != nil {
		return nil, fmt.Errorf("invalid review JSON: %w", err)
	}
	return env.Fixes, nil
}

// reviewPass asks the architect for a final integration review of everything
// this session committed and applies the surgical fixes it proposes. The pass
// is best effort end to end: a failed call, an unusable response, or a fix
// that does not survive validation leaves the generated code as it stands.
func (o *Orchestrator) reviewPass(ctx context.Context, s *BuildSession) {
	files := make(map[string]string)
	for _, task := range s.Tasks() {
		if task.Status != TaskCommitted {
			continue
		}
		if node, ok := o.project.Get(task.Path); ok {
			files[task.Path] = node.Content
		}
	}
	if len(files) == 0 {
		return
	}

	s.setStatus(SessionReviewing)
	o.publishSession(s, "")
	logging.Info("reviewing generated files", "session", s.ID, "files", len(files))

	raw, err := o.client.Review(ctx, s.Request, files)
	if err != nil {
		logging.Warn("review call failed, keeping generated code as-is", "session", s.ID, "error", err)
		return
	}

	fixes, err := parseReviewFixes(raw)
	if err != nil {
		logging.Warn("review response unusable, keeping generated code as-is", "session", s.ID, "error", err)
		return
	}
	if len(fixes) == 0 {
		logging.Info("review found no issues", "session", s.ID)
		return
	}

	logging.Info("applying review fixes", "session", s.ID, "fixes", len(fixes))
	for _, fix := range fixes {
		if ctx.Err() != nil {
			return
		}
		o.applyReviewFix(ctx, s, files, fix)
	}
}

// applyReviewFix commits one surgical edit through the synchronizer so it
// gets the same sanitize/validate/version treatment as generated content.
// An incomplete or out-of-range fix is discarded, never partially applied.
func (o *Orchestrator) applyReviewFix(ctx context.Context, s *BuildSession, files map[string]string, fix reviewFix) {
	if _, ok := files[fix.Filename]; !ok {
		logging.Warn("review fix targets a file outside this session, discarded", "path", fix.Filename)
		return
	}

	// Later fixes build on earlier ones: always patch the current committed
	// content, not the snapshot the review saw.
	node, ok := o.project.Get(fix.Filename)
	if !ok {
		return
	}

	patched, ok := spliceLines(node.Content, fix.StartLine, fix.EndLine, fix.CorrectedCode)
	if !ok {
		logging.Warn("review fix has an invalid line range, discarded",
			"path", fix.Filename, "start", fix.StartLine, "end", fix.EndLine)
		return
	}

	opID := uuid.NewString()
	if err := o.sync.Begin(opID, s.ID, fix.Filename); err != nil {
		logging.Warn("review fix could not lock the file, discarded", "path", fix.Filename, "error", err)
		return
	}
	if err := o.sync.ApplyChunk(opID, patched); err != nil {
		o.sync.Rollback(opID, err.Error())
		return
	}
	if _, err := o.sync.Commit(opID); err != nil {
		logging.Warn("review fix rejected", "path", fix.Filename, "error", err)
		return
	}

	o.afterCommit(ctx, fix.Filename)
	logging.Info("review fix committed", "path", fix.Filename, "description", fix.Description)
}

// spliceLines replaces lines start..end (1-based, inclusive) of content with
// replacement. end is clamped to the last line; a start outside the file
// rejects the edit.
func spliceLines(content string, start, end int, replacement string) (string, bool) {
	lines := strings.Split(content, "\n")
	hadTrailingNewline := strings.HasSuffix(content, "\n")
	if hadTrailingNewline {
		lines = lines[:len(lines)-1]
	}

	if start < 1 || start > len(lines) || end < start {
		return "", false
	}
	if end > len(lines) {
		end = len(lines)
	}

	// An empty corrected block means the lines are simply deleted.
	var replLines []string
	if replacement != "" {
		replLines = strings.Split(strings.TrimSuffix(replacement, "\n"), "\n")
	}

	out := make([]string, 0, len(lines)-(end-start+1)+len(replLines))
	out = append(out, lines[:start-1]...)
	out = append(out, replLines...)
	out = append(out, lines[end:]...)

	patched := strings.Join(out, "\n")
	if hadTrailingNewline {
		patched += "\n"
	}
	return patched, true
}
