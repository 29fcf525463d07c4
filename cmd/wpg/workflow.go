package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wpgraph/wpgraph/internal/workflow"
)

func newWorkflowCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workflow",
		GroupID: "setup",
		Short:   "Validate and watch workflow rule files",
	}

	check := &cobra.Command{
		Use:   "check <file>",
		Short: "Validate a workflow file against the store's statuses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := a.loadTable(cmd, args[0])
			if err != nil {
				return err
			}
			rules := table.Rules()
			if a.json {
				return outputJSON(cmd.OutOrStdout(), rules)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s %s: %d rule(s)\n", renderPass(iconPass), args[0], len(rules))
			for _, r := range rules {
				fmt.Fprintf(w, "  %s%s\n", treeLast, formatRule(r))
			}
			return nil
		},
	}

	watch := &cobra.Command{
		Use:   "watch <file>",
		Short: "Reload a workflow file on every change until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := a.loadTable(cmd, args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			watcher, err := workflow.Watch(cmd.Context(), args[0], table,
				workflow.WithWatchLogger(a.logger),
				workflow.OnReload(func(err error) {
					if err != nil {
						fmt.Fprintf(w, "%s %v (keeping previous rules)\n", renderWarn(iconWarn), err)
						return
					}
					fmt.Fprintf(w, "%s reloaded %d rule(s)\n", renderPass(iconPass), len(table.Rules()))
				}))
			if err != nil {
				return err
			}
			defer watcher.Close()

			fmt.Fprintf(w, "Watching %s (%d rule(s)), Ctrl-C to stop\n", args[0], len(table.Rules()))
			<-cmd.Context().Done()
			return nil
		},
	}

	cmd.AddCommand(check, watch)
	return cmd
}

func (a *app) loadTable(cmd *cobra.Command, path string) (*workflow.Table, error) {
	rules, err := workflow.LoadRules(path)
	if err != nil {
		return nil, err
	}
	table, err := workflow.LoadTable(cmd.Context(), a.store, rules)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

func formatRule(r workflow.Rule) string {
	or := func(s string) string {
		if s == "" {
			return workflow.Wildcard
		}
		return s
	}
	return fmt.Sprintf("type=%s role=%s %s → %s", or(r.Type), or(r.Role), or(r.From), strings.Join(r.To, ", "))
}
