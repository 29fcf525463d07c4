package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wpgraph/wpgraph/internal/relations"
	"github.com/wpgraph/wpgraph/internal/types"
)

func newRelCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rel",
		GroupID: "graph",
		Short:   "Manage relations between items",
	}

	var (
		delay          int
		skipValidation bool
	)
	add := &cobra.Command{
		Use:   "add <from> <kind> <to>",
		Short: "Relate two items",
		Long: `Relate two items. Kinds: relates, duplicates, duplicated, blocks, blocked,
precedes, follows. Inverse kinds are stored as their forward form, so
"wpg rel add 2 follows 1" stores "1 precedes 2".`,
		Example: `  wpg rel add 4 duplicates 2
  wpg rel add 1 precedes 3 --delay 2`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseID(args[0])
			if err != nil {
				return err
			}
			to, err := parseID(args[2])
			if err != nil {
				return err
			}
			rel := &types.Relation{FromID: from, ToID: to, Kind: types.RelationKind(args[1])}
			if cmd.Flags().Changed("delay") {
				rel.Delay = types.IntPtr(delay)
			}
			var opts []relations.AddOption
			if skipValidation {
				opts = append(opts, relations.SkipValidation())
			}
			res, err := a.engine.AddRelation(cmd.Context(), a.actor, rel, opts...)
			if err != nil {
				return err
			}
			return a.printResult(cmd.OutOrStdout(), fmt.Sprintf("relation %d: %s", rel.ID, rel), res)
		},
	}
	add.Flags().IntVar(&delay, "delay", 0, "Days between a predecessor's end and its successor's start (precedes/follows)")
	add.Flags().BoolVar(&skipValidation, "skip-validation", false, "Store the relation even if it closes a cycle")

	rm := &cobra.Command{
		Use:     "rm <relation-id>",
		Aliases: []string{"remove"},
		Short:   "Remove a relation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			res, err := a.engine.RemoveRelation(cmd.Context(), a.actor, id)
			if err != nil {
				return err
			}
			return a.printResult(cmd.OutOrStdout(), fmt.Sprintf("relation %d removed", id), res)
		},
	}

	var kind string
	list := &cobra.Command{
		Use:   "list [id]",
		Short: "List stored relations, all or those touching one item",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			k := types.RelationKind(kind)
			if k != "" {
				if !k.IsValid() {
					return fmt.Errorf("invalid relation kind: %s", k)
				}
				k, _ = k.Canonical(false)
			}
			var rels []*types.Relation
			if len(args) == 0 {
				var err error
				if rels, err = a.store.ListRelations(ctx, k); err != nil {
					return err
				}
			} else {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				kinds := []types.RelationKind{k}
				if k == "" {
					kinds = []types.RelationKind{types.RelRelates, types.RelDuplicates, types.RelBlocks, types.RelPrecedes}
				}
				for _, kk := range kinds {
					for _, reverse := range []bool{false, true} {
						found, err := a.store.GetRelationsFor(ctx, id, kk, reverse)
						if err != nil {
							return err
						}
						rels = append(rels, found...)
					}
				}
			}

			if a.json {
				return outputJSON(cmd.OutOrStdout(), rels)
			}
			for _, r := range rels {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", renderMuted(fmt.Sprintf("%4d", r.ID)), r)
			}
			return nil
		},
	}
	list.Flags().StringVarP(&kind, "kind", "k", "", "Only relations of this kind")

	cmd.AddCommand(add, rm, list)
	return cmd
}
