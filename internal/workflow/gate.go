// Package workflow answers "which statuses may this role move an item to".
//
// The relation engine consults a Gate before every status change, both for the
// triggering change and for each item a cascade wants to close. Rules come from
// a YAML or TOML file and can be reloaded while the process runs.
package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/wpgraph/wpgraph/internal/types"
)

// Wildcard matches any type, role, or status in a rule.
const Wildcard = "*"

//go:generate mockgen -destination ../mocks/mock_gate.go -package mocks github.com/wpgraph/wpgraph/internal/workflow Gate

// Gate reports the statuses reachable from a status for a type and role.
type Gate interface {
	AllowedTransitions(ctx context.Context, from, typeID, role string) ([]*types.Status, error)
}

// StatusSource is the part of the repository a Table needs to resolve status ids.
type StatusSource interface {
	ListStatuses(ctx context.Context) ([]*types.Status, error)
}

// Rule permits transitions from From to each status in To for items of Type
// when the actor holds Role.
type Rule struct {
	Type string   `yaml:"type" toml:"type"`
	Role string   `yaml:"role" toml:"role"`
	From string   `yaml:"from" toml:"from"`
	To   []string `yaml:"to" toml:"to"`
}

func (r Rule) matches(from, typeID, role string) bool {
	return match(r.Type, typeID) && match(r.Role, role) && match(r.From, from)
}

func match(pattern, v string) bool {
	return pattern == "" || pattern == Wildcard || pattern == v
}

// Table is a rule-driven Gate. Statuses are cached so lookups never touch the
// repository, which keeps the gate usable inside a running transaction.
// A Table is safe for concurrent use.
type Table struct {
	mu       sync.RWMutex
	statuses map[string]*types.Status
	rules    []Rule
}

var _ Gate = (*Table)(nil)

// NewTable builds a Table over the given statuses. Rules referencing unknown
// statuses are rejected.
func NewTable(statuses []*types.Status, rules []Rule) (*Table, error) {
	t := &Table{}
	t.SetStatuses(statuses)
	if err := t.SetRules(rules); err != nil {
		return nil, err
	}
	return t, nil
}

// LoadTable reads statuses from src and builds a Table over them.
func LoadTable(ctx context.Context, src StatusSource, rules []Rule) (*Table, error) {
	statuses, err := src.ListStatuses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	return NewTable(statuses, rules)
}

// SetStatuses replaces the cached statuses.
func (t *Table) SetStatuses(statuses []*types.Status) {
	m := make(map[string]*types.Status, len(statuses))
	for _, s := range statuses {
		cp := *s
		m[s.ID] = &cp
	}
	t.mu.Lock()
	t.statuses = m
	t.mu.Unlock()
}

// Refresh reloads the cached statuses from src.
func (t *Table) Refresh(ctx context.Context, src StatusSource) error {
	statuses, err := src.ListStatuses(ctx)
	if err != nil {
		return fmt.Errorf("list statuses: %w", err)
	}
	t.SetStatuses(statuses)
	return nil
}

// SetRules validates rules and swaps them in. On error the previous rules stay.
func (t *Table) SetRules(rules []Rule) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := validateRules(rules, t.statuses); err != nil {
		return err
	}
	t.rules = append([]Rule(nil), rules...)
	return nil
}

// Rules returns a copy of the active rules.
func (t *Table) Rules() []Rule {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Rule(nil), t.rules...)
}

func validateRules(rules []Rule, statuses map[string]*types.Status) error {
	known := func(id string) bool {
		if id == "" || id == Wildcard {
			return true
		}
		_, ok := statuses[id]
		return ok
	}
	for i, r := range rules {
		if len(r.To) == 0 {
			return fmt.Errorf("rule %d: no target statuses", i+1)
		}
		if !known(r.From) {
			return fmt.Errorf("rule %d: unknown status %q", i+1, r.From)
		}
		for _, to := range r.To {
			if to == "" || !known(to) {
				return fmt.Errorf("rule %d: unknown status %q", i+1, to)
			}
		}
	}
	return nil
}

// AllowedTransitions implements Gate. The result excludes from itself and is
// ordered by status position.
func (t *Table) AllowedTransitions(ctx context.Context, from, typeID, role string) ([]*types.Status, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen := make(map[string]bool)
	var out []*types.Status
	add := func(s *types.Status) {
		if s.ID == from || seen[s.ID] {
			return
		}
		seen[s.ID] = true
		cp := *s
		out = append(out, &cp)
	}
	for _, r := range t.rules {
		if !r.matches(from, typeID, role) {
			continue
		}
		for _, to := range r.To {
			if to == Wildcard {
				for _, s := range t.statuses {
					add(s)
				}
				continue
			}
			if s, ok := t.statuses[to]; ok {
				add(s)
			}
		}
	}
	sortStatuses(out)
	return out, nil
}

// AllowAll returns a Table that permits every transition between the given
// statuses. It is used when no workflow file is configured.
func AllowAll(statuses []*types.Status) *Table {
	t := &Table{rules: []Rule{{Type: Wildcard, Role: Wildcard, From: Wildcard, To: []string{Wildcard}}}}
	t.SetStatuses(statuses)
	return t
}

func sortStatuses(s []*types.Status) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Position != s[j].Position {
			return s[i].Position < s[j].Position
		}
		return s[i].ID < s[j].ID
	})
}
