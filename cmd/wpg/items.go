package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wpgraph/wpgraph/internal/debug"
	"github.com/wpgraph/wpgraph/internal/timeparsing"
	"github.com/wpgraph/wpgraph/internal/types"
)

func newCreateCmd(a *app) *cobra.Command {
	var project, typeID, status, start, due string
	cmd := &cobra.Command{
		Use:     "create <subject>",
		GroupID: "items",
		Short:   "Create a work item",
		Long: `Create a work item. Dates accept ISO dates (2024-03-04), offsets (+3d, -1w)
and natural language ("next monday").`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			item := &types.WorkItem{
				Subject:   strings.Join(args, " "),
				ProjectID: project,
				TypeID:    typeID,
				StatusID:  status,
			}
			var err error
			if item.StartDate, err = a.parseDate(start); err != nil {
				return err
			}
			if item.DueDate, err = a.parseDate(due); err != nil {
				return err
			}
			if item.StatusID == "" {
				if item.StatusID, err = a.defaultStatus(ctx); err != nil {
					return err
				}
			}
			if err := a.store.CreateItem(ctx, item, a.actor.Name); err != nil {
				return err
			}

			if a.json {
				return outputJSON(cmd.OutOrStdout(), item)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Created #%d: %s\n", renderPass(iconPass), item.ID, item.Subject)
			return nil
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project id (default: "+types.DefaultProject+")")
	cmd.Flags().StringVarP(&typeID, "type", "t", "", "Type id (default: "+types.DefaultType+")")
	cmd.Flags().StringVarP(&status, "status", "s", "", "Initial status (default: the store's default status)")
	cmd.Flags().StringVar(&start, "start", "", "Start date")
	cmd.Flags().StringVar(&due, "due", "", "Due date")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "show <id>",
		GroupID: "items",
		Short:   "Show an item with its relations, blockers and allowed statuses",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			item, err := a.store.GetItem(ctx, id)
			if err != nil {
				return fmt.Errorf("item #%d: %w", id, err)
			}
			blockers, err := a.engine.OpenBlockers(ctx, id)
			if err != nil {
				return err
			}
			allowed, err := a.engine.AllowedStatuses(ctx, a.actor, id)
			if err != nil {
				return err
			}
			related, err := a.relationsOf(ctx, id)
			if err != nil {
				return err
			}

			if a.json {
				return outputJSON(cmd.OutOrStdout(), struct {
					*types.WorkItem
					Blocked   bool                           `json:"blocked"`
					BlockedBy []int64                        `json:"blocked_by,omitempty"`
					Allowed   []*types.Status                `json:"allowed_statuses"`
					Relations map[types.RelationKind][]int64 `json:"relations,omitempty"`
				}{item, len(blockers) > 0, blockers, allowed, related})
			}

			w := cmd.OutOrStdout()
			status, _ := a.store.GetStatus(ctx, item.StatusID)
			fmt.Fprintln(w, itemLine(item, status))
			fmt.Fprintf(w, "  project %s · type %s\n", item.ProjectID, item.TypeID)
			if len(blockers) > 0 {
				fmt.Fprintf(w, "  %s %s\n", renderFail(iconFail), renderFail(fmt.Sprintf("blocked by %s", joinIDs(blockers))))
			}
			for _, kind := range types.AllRelationKinds() {
				if ids := related[kind]; len(ids) > 0 {
					fmt.Fprintf(w, "  %s%s %s\n", treeLast, kind, joinIDs(ids))
				}
			}
			names := make([]string, 0, len(allowed))
			for _, s := range allowed {
				names = append(names, s.ID)
			}
			fmt.Fprintf(w, "  %s %s\n", renderCategory("allowed:"), orNone(strings.Join(names, ", ")))
			return nil
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:     "list",
		GroupID: "items",
		Short:   "List work items",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			items, err := a.store.ListItems(ctx, project)
			if err != nil {
				return err
			}
			if a.json {
				return outputJSON(cmd.OutOrStdout(), items)
			}
			statuses, err := a.statusMap(ctx)
			if err != nil {
				return err
			}
			for _, item := range items {
				fmt.Fprintln(cmd.OutOrStdout(), itemLine(item, statuses[item.StatusID]))
			}
			if len(items) == 0 {
				debug.PrintlnNormal(cmd.OutOrStdout(), renderMuted("no items"))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "Only items of this project")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>...",
		GroupID: "items",
		Short:   "Delete items together with their relations",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			for _, id := range ids {
				if err := a.store.DeleteItem(cmd.Context(), id); err != nil {
					return fmt.Errorf("item #%d: %w", id, err)
				}
				if !a.json {
					fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted #%d\n", renderPass(iconPass), id)
				}
			}
			if a.json {
				return outputJSON(cmd.OutOrStdout(), map[string][]int64{"deleted": ids})
			}
			return nil
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:     "history <id>",
		GroupID: "items",
		Short:   "Show the audit trail of an item, newest first",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			events, err := a.engine.History(cmd.Context(), id, limit)
			if err != nil {
				return err
			}
			if a.json {
				return outputJSON(cmd.OutOrStdout(), events)
			}
			for _, ev := range events {
				line := fmt.Sprintf("%s %-20s %s", ev.CreatedAt.Local().Format("2006-01-02 15:04"), ev.EventType, ev.Actor)
				if ev.OldValue != nil || ev.NewValue != nil {
					line += fmt.Sprintf(" %s → %s", orNone(deref(ev.OldValue)), orNone(deref(ev.NewValue)))
				}
				if ev.CascadeID != "" {
					line += renderMuted(" " + ev.CascadeID)
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of events (0 for all)")
	return cmd
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("#%d", id)
	}
	return strings.Join(parts, ", ")
}

// parseDate resolves a user supplied date against today. Empty means unset.
func (a *app) parseDate(s string) (*time.Time, error) {
	return timeparsing.ParseRelativeDate(s, a.clock.Now())
}

func (a *app) defaultStatus(ctx context.Context) (string, error) {
	statuses, err := a.store.ListStatuses(ctx)
	if err != nil {
		return "", err
	}
	for _, s := range statuses {
		if s.IsDefault {
			return s.ID, nil
		}
	}
	if len(statuses) == 0 {
		return "", fmt.Errorf("store has no statuses")
	}
	return statuses[0].ID, nil
}

func (a *app) statusMap(ctx context.Context) (map[string]*types.Status, error) {
	statuses, err := a.store.ListStatuses(ctx)
	if err != nil {
		return nil, err
	}
	m := make(map[string]*types.Status, len(statuses))
	for _, s := range statuses {
		m[s.ID] = s
	}
	return m, nil
}

// relationsOf groups the neighbors of id by the kind read from id's side.
func (a *app) relationsOf(ctx context.Context, id int64) (map[types.RelationKind][]int64, error) {
	out := make(map[types.RelationKind][]int64)
	for _, kind := range types.AllRelationKinds() {
		ids, err := a.engine.Neighbors(ctx, id, kind, false)
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			out[kind] = ids
		}
	}
	return out, nil
}
