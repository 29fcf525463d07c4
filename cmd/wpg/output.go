package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/wpgraph/wpgraph/internal/debug"
	"github.com/wpgraph/wpgraph/internal/relations"
	"github.com/wpgraph/wpgraph/internal/storage"
	"github.com/wpgraph/wpgraph/internal/types"
)

// outputJSON writes v as pretty-printed JSON.
func outputJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}

// errorCode classifies err for --json consumers.
func errorCode(err error) string {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return "not_found"
	case errors.Is(err, relations.ErrTransitionNotAllowed):
		return "transition_not_allowed"
	case errors.Is(err, relations.ErrCycle):
		return "cycle"
	case relations.IsValidation(err):
		return "invalid"
	}
	return ""
}

// writeError prints err to w, as a JSON object when asJSON is set.
func writeError(w io.Writer, err error, asJSON bool) {
	if asJSON {
		errObj := map[string]string{"error": err.Error()}
		if code := errorCode(err); code != "" {
			errObj["code"] = code
		}
		_ = outputJSON(w, errObj) // Best effort: the error is reported through the exit code as well
		return
	}
	fmt.Fprintf(w, "%s %v\n", renderFail("Error:"), err)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item id %q", s)
	}
	return id, nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := parseID(a)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// printResult reports what a cascade changed and what it had to skip.
func (a *app) printResult(w io.Writer, what string, res *relations.Result) error {
	if a.json {
		return outputJSON(w, res)
	}
	if len(res.Changes) == 0 {
		fmt.Fprintf(w, "%s %s (no changes)\n", renderMuted(iconSkip), what)
		return nil
	}
	fmt.Fprintf(w, "%s %s\n", renderPass(iconPass), what)
	for _, c := range res.Changes {
		line := fmt.Sprintf("#%d %s", c.ItemID, c.Type)
		if c.Old != "" || c.New != "" {
			line += fmt.Sprintf(" %s → %s", orNone(c.Old), orNone(c.New))
		}
		if c.Via != 0 {
			line += renderMuted(fmt.Sprintf(" (via #%d)", c.Via))
		}
		fmt.Fprintf(w, "  %s%s\n", treeLast, line)
	}
	for _, s := range res.Skipped {
		fmt.Fprintf(w, "  %s %s\n", renderWarn(iconWarn),
			renderWarn(fmt.Sprintf("#%d skipped (via #%d): %s", s.ItemID, s.Via, s.Reason)))
	}
	debug.PrintlnNormal(w, renderMuted("cascade "+res.CascadeID))
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func itemLine(item *types.WorkItem, status *types.Status) string {
	dates := ""
	if item.StartDate != nil || item.DueDate != nil {
		dates = renderMuted(fmt.Sprintf(" [%s..%s]", orNone(types.FormatDate(item.StartDate)), orNone(types.FormatDate(item.DueDate))))
	}
	return fmt.Sprintf("#%d %s %s%s", item.ID, renderStatus(status, item.StatusID), item.Subject, dates)
}
