package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"forge/internal/event"
	"forge/internal/logging"
	"forge/internal/orch"
	"forge/internal/project"
)

func newBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build [request]",
		Short: "Plan and generate a project from a natural-language request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			request := strings.Join(args, " ")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.initAgents(ctx); err != nil {
				return err
			}

			// Index what's already there so iterative plans can scope
			// themselves to the relevant files.
			for path, content := range a.proj.Contents() {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if err := a.index.Ingest(ctx, path, content); err != nil {
					logging.Warn("indexing existing file failed", "path", path, "error", err)
				}
			}

			// External edits during the session mark the node stale and push
			// the edited content back through the knowledge index so later
			// plans never rank pre-edit chunks.
			watcher, err := project.NewWatcher(a.proj, a.bus, func(path, content string) {
				if err := a.index.Ingest(ctx, path, content); err != nil {
					logging.Warn("re-indexing stale file failed", "path", path, "error", err)
				}
			})
			if err != nil {
				logging.Warn("project watcher unavailable", "error", err)
			} else {
				defer watcher.Close()
			}

			events, unsub := a.bus.Subscribe()
			rendered := make(chan struct{})
			go func() {
				defer close(rendered)
				renderBuildEvents(events)
			}()

			session, buildErr := a.orch.StartBuild(ctx, request)
			unsub()
			<-rendered

			if session != nil {
				printSummary(session)
			}
			if buildErr != nil {
				return buildErr
			}
			if session.Status() != orch.SessionCompleted {
				return fmt.Errorf("build finished with status %s", session.Status())
			}
			return nil
		},
	}
}

func renderBuildEvents(events <-chan event.Event) {
	for ev := range events {
		switch ev.Type {
		case event.TypeSessionStatus:
			if ev.Error != "" {
				fmt.Printf("session: %s (%s)\n", ev.Status, ev.Error)
			} else {
				fmt.Printf("session: %s\n", ev.Status)
			}
		case event.TypeTaskStatus:
			if ev.Error != "" {
				fmt.Printf("  %-12s %s: %s\n", ev.Status, ev.Path, ev.Error)
			} else {
				fmt.Printf("  %-12s %s\n", ev.Status, ev.Path)
			}
		case event.TypeFileCommitted:
			fmt.Printf("  committed    %s v%d\n", ev.Path, ev.Version)
		case event.TypeFileStale:
			fmt.Printf("  stale        %s\n", ev.Path)
		}
	}
}

func printSummary(s *orch.BuildSession) {
	sum := s.Summarize()
	fmt.Printf("\n%d/%d files committed", sum.Committed, sum.Total)
	if sum.Failed > 0 {
		fmt.Printf(", %d failed", sum.Failed)
	}
	if sum.Skipped > 0 {
		fmt.Printf(", %d skipped", sum.Skipped)
	}
	fmt.Println()

	for _, task := range s.Tasks() {
		if task.Status == orch.TaskFailed || task.Status == orch.TaskSkipped {
			fmt.Printf("  %s: %s (%s)\n", task.Path, task.Status, task.Err)
		}
	}
}
