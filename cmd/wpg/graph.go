package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wpgraph/wpgraph/internal/types"
)

func newBlockedCmd(a *app) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:     "blocked [id...]",
		GroupID: "graph",
		Short:   "Show items blocked by an open item",
		Long:    `Show blocked items among the given ids, or among all items of --project (default: every item).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				items, err := a.store.ListItems(ctx, project)
				if err != nil {
					return err
				}
				for _, item := range items {
					ids = append(ids, item.ID)
				}
			}
			blocked, err := a.engine.BlockedItems(ctx, ids)
			if err != nil {
				return err
			}

			if a.json {
				return outputJSON(cmd.OutOrStdout(), blocked)
			}
			w := cmd.OutOrStdout()
			if len(blocked) == 0 {
				fmt.Fprintf(w, "%s No blocked items\n", renderPass(iconPass))
				return nil
			}
			fmt.Fprintf(w, "%s\n", renderCategory(fmt.Sprintf("Blocked items (%d):", len(blocked))))
			for _, b := range blocked {
				fmt.Fprintf(w, "%s #%d %s\n", renderFail(iconFail), b.ID, b.Subject)
				fmt.Fprintf(w, "  %sblocked by %s\n", treeLast, joinIDs(b.BlockedBy))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "Only items of this project")
	return cmd
}

func newDependentsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "dependents <id>",
		GroupID: "graph",
		Short:   "List every item transitively following an item",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			deps, err := a.engine.AllDependentItems(cmd.Context(), id)
			if err != nil {
				return err
			}
			if a.json {
				if deps == nil {
					deps = []int64{}
				}
				return outputJSON(cmd.OutOrStdout(), deps)
			}
			if len(deps) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s #%d has no dependents\n", renderMuted(iconSkip), id)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "#%d %s %s\n", id, renderMuted("→"), joinIDs(deps))
			return nil
		},
	}
}

func newCyclesCmd(a *app) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:     "cycles",
		GroupID: "graph",
		Short:   "Report relation cycles left by legacy data",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cycles, err := a.engine.DetectCycles(cmd.Context(), types.RelationKind(kind))
			if err != nil {
				return err
			}
			if a.json {
				if cycles == nil {
					cycles = [][]int64{}
				}
				return outputJSON(cmd.OutOrStdout(), cycles)
			}
			w := cmd.OutOrStdout()
			if len(cycles) == 0 {
				fmt.Fprintf(w, "%s No %s cycles\n", renderPass(iconPass), kind)
				return nil
			}
			fmt.Fprintf(w, "%s %s\n", renderWarn(iconWarn), renderWarn(fmt.Sprintf("%d %s cycle(s):", len(cycles), kind)))
			for _, c := range cycles {
				fmt.Fprintf(w, "  %s%s → #%d\n", treeLast, joinIDs(c), c[0])
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", string(types.RelPrecedes), "Relation kind to check")
	return cmd
}
