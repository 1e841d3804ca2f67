package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"forge/internal/event"
	"forge/internal/execute"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [command]",
		Short: "Run a command inside the project directory",
		Long: `Run executes a shell command in the project directory with a sanitized
environment. When the project carries a virtualenv, interpreter and tool
invocations are rewritten to use it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd, execute.KindRun, strings.Join(args, " "))
		},
	}
}

func newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install [command]",
		Short: "Run a dependency install; installs queue instead of failing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd, execute.KindInstall, strings.Join(args, " "))
		},
	}
}

func runJob(cmd *cobra.Command, kind execute.Kind, command string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	exec := execute.New(a.cfg.Executor, a.proj.Root, a.bus)

	events, unsub := a.bus.Subscribe()
	defer unsub()

	job, err := exec.Submit(kind, command)
	if err != nil {
		return err
	}

	go func() {
		select {
		case <-ctx.Done():
			_ = exec.Cancel(job.ID)
		case <-job.Done():
		}
	}()

	for {
		select {
		case ev := <-events:
			if ev.JobID == job.ID && ev.Type == event.TypeJobOutput {
				fmt.Println(ev.Text)
			}
		case <-job.Done():
			// Drain whatever the stream delivered before termination.
			for {
				select {
				case ev := <-events:
					if ev.JobID == job.ID && ev.Type == event.TypeJobOutput {
						fmt.Println(ev.Text)
					}
					continue
				default:
				}
				break
			}

			status := job.Status()
			if status != execute.StatusSucceeded {
				return fmt.Errorf("command %s (exit %d): %s", status, job.ExitCode(), job.Err())
			}
			return nil
		}
	}
}
