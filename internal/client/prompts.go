package client

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const plannerSystem = `You are a software architect. You deconstruct a user's
request into an ordered set of file-level work items for a team of coder
agents. Respond with a single JSON object and nothing else.`

const plannerSchema = `{
  "manifest": [
    {
      "path": "relative/file/path.py",
      "purpose": "one sentence describing what this file does",
      "depends_on": ["paths/of/files/this/one/imports.py"]
    }
  ]
}`

const coderSystem = `You are an expert coder agent. You write one complete
file at a time. Output only the raw file content. Do not wrap it in markdown
fences and do not add commentary.`

const reviewerSystem = `You are a lead software engineer performing the final
integration review of a generated codebase. Trace the application logic from
its entry point, find bugs and logical disconnects between files, and fix
them with surgical edits. Respond with a single JSON object and nothing
else.`

const reviewerSchema = `{
  "fixes": [
    {
      "filename": "relative/file/path.py",
      "description": "one sentence describing the fix",
      "start_line": 1,
      "end_line": 1,
      "corrected_code": "the replacement for lines start_line..end_line"
    }
  ]
}`

// BuildPlanPrompt renders the architect prompt for a plan call.
func BuildPlanPrompt(request string, pc PlanContext) string {
	var b strings.Builder

	b.WriteString(plannerSystem)
	b.WriteString("\n\nUSER REQUEST:\n")
	b.WriteString(request)

	if len(pc.ExistingFiles) > 0 {
		b.WriteString("\n\nEXISTING PROJECT FILES:\n")
		b.WriteString(marshalFiles(pc.ExistingFiles))
		b.WriteString("\nOnly include files that must be created or modified to satisfy the request. Never include unrelated files.")
	}

	if pc.RAGContext != "" {
		b.WriteString("\n\nRELEVANT CONTEXT:\n")
		b.WriteString(pc.RAGContext)
	}

	b.WriteString("\n\nRespond with JSON matching this schema:\n")
	b.WriteString(plannerSchema)
	b.WriteString("\nList a dependency in depends_on only when the file imports or references another planned file.")

	return b.String()
}

// BuildGeneratePrompt renders the coder prompt for a generation call.
func BuildGeneratePrompt(spec FileSpec, gc GenContext) string {
	var b strings.Builder

	b.WriteString(coderSystem)
	b.WriteString("\n\nUSER REQUEST:\n")
	b.WriteString(gc.Request)
	fmt.Fprintf(&b, "\n\nTARGET FILE: %s\nPURPOSE: %s\n", spec.Path, spec.Purpose)

	if len(spec.Requires) > 0 {
		fmt.Fprintf(&b, "THIS FILE MAY IMPORT FROM: %s\n", strings.Join(spec.Requires, ", "))
	}

	if gc.Interfaces != "" {
		b.WriteString("\nPUBLIC INTERFACES OF OTHER PROJECT FILES:\n")
		b.WriteString(gc.Interfaces)
		b.WriteString("\n")
	}

	if gc.Existing != "" {
		b.WriteString("\nCURRENT CONTENT OF THE TARGET FILE (rewrite it in full):\n")
		b.WriteString(gc.Existing)
		b.WriteString("\n")
	}

	b.WriteString("\nWrite the complete content of the target file now.")

	return b.String()
}

// BuildReviewPrompt renders the architect prompt for a review call.
func BuildReviewPrompt(request string, files map[string]string) string {
	var b strings.Builder

	b.WriteString(reviewerSystem)
	b.WriteString("\n\nORIGINAL USER REQUEST:\n")
	b.WriteString(request)

	b.WriteString("\n\nCODE TO REVIEW:\n")
	b.WriteString(marshalFiles(files))

	b.WriteString("\n\nRespond with JSON matching this schema:\n")
	b.WriteString(reviewerSchema)
	b.WriteString("\nLine numbers are 1-based and the range is inclusive. If no fixes are needed, return an empty fixes list.")

	return b.String()
}

// marshalFiles renders a path→content map as deterministic JSON.
func marshalFiles(files map[string]string) string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var b strings.Builder
	b.WriteString("{\n")
	for i, p := range paths {
		key, _ := json.Marshal(p)
		val, _ := json.Marshal(files[p])
		b.Write(key)
		b.WriteString(": ")
		b.Write(val)
		if i < len(paths)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}")
	return b.String()
}
