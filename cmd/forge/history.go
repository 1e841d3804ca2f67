package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List past build sessions for this project",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.store.SessionHistory(ctx, a.proj.ID)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("no build sessions recorded")
				return nil
			}

			for _, rec := range records {
				request := rec.Request
				if len(request) > 60 {
					request = request[:57] + "..."
				}
				fmt.Printf("%s  %-10s %-16s %s\n",
					rec.StartedAt.Local().Format("2006-01-02 15:04"),
					rec.Mode, rec.Status, request)
			}
			return nil
		},
	}
}
