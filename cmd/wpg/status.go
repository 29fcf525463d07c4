package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wpgraph/wpgraph/internal/debug"
)

func newStatusCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "status",
		GroupID: "items",
		Short:   "Change item statuses and inspect the workflow",
	}

	set := &cobra.Command{
		Use:   "set <id> <status>",
		Short: "Move an item to a status; closing it closes its duplicates",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			res, err := a.engine.ChangeStatus(cmd.Context(), a.actor, id, args[1])
			if err != nil {
				return err
			}
			return a.printResult(cmd.OutOrStdout(), fmt.Sprintf("#%d → %s", id, args[1]), res)
		},
	}

	allowed := &cobra.Command{
		Use:   "allowed <id>",
		Short: "List the statuses the actor may move an item to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			statuses, err := a.engine.AllowedStatuses(cmd.Context(), a.actor, id)
			if err != nil {
				return err
			}
			if a.json {
				return outputJSON(cmd.OutOrStdout(), statuses)
			}
			for _, s := range statuses {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", renderStatus(s, s.ID), renderMuted(s.Name))
			}
			if len(statuses) == 0 {
				debug.PrintlnNormal(cmd.OutOrStdout(), renderMuted("no transitions allowed"))
			}
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the statuses known to the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := a.store.ListStatuses(cmd.Context())
			if err != nil {
				return err
			}
			if a.json {
				return outputJSON(cmd.OutOrStdout(), statuses)
			}
			for _, s := range statuses {
				var flags []string
				if s.IsClosed {
					flags = append(flags, "closed")
				}
				if s.IsDefault {
					flags = append(flags, "default")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d %s %s %s\n", s.Position, renderStatus(s, s.ID), s.Name, renderMuted(strings.Join(flags, " ")))
			}
			return nil
		},
	}

	cmd.AddCommand(set, allowed, list)
	return cmd
}

func newDatesCmd(a *app) *cobra.Command {
	var start, due string
	cmd := &cobra.Command{
		Use:     "dates <id>",
		GroupID: "items",
		Short:   "Change an item's start and due dates; successors are rescheduled",
		Long: `Change an item's start and/or due date. Omitted flags keep the current value,
"none" clears it. When the end date moves, items it precedes are pushed later.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("start") && !cmd.Flags().Changed("due") {
				return fmt.Errorf("nothing to change: pass --start and/or --due")
			}
			item, err := a.store.GetItem(ctx, id)
			if err != nil {
				return fmt.Errorf("item #%d: %w", id, err)
			}
			newStart, newDue := item.StartDate, item.DueDate
			if cmd.Flags().Changed("start") {
				if newStart, err = a.parseDate(start); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("due") {
				if newDue, err = a.parseDate(due); err != nil {
					return err
				}
			}
			res, err := a.engine.ChangeDates(ctx, a.actor, id, newStart, newDue)
			if err != nil {
				return err
			}
			return a.printResult(cmd.OutOrStdout(), fmt.Sprintf("#%d dates", id), res)
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "New start date")
	cmd.Flags().StringVar(&due, "due", "", "New due date")
	return cmd
}
