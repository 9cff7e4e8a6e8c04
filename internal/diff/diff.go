// Package diff computes field-level and line-oriented diffs between two
// entity snapshots for audit display.
package diff

import (
	"reflect"
	"sort"
	"strings"
)

// ChangeType indicates how a field or line changed between two versions.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeRemoved  ChangeType = "removed"
	ChangeModified ChangeType = "modified"
)

// FieldChange is one changed key between two snapshots. For long-text fields
// the caller may attach a line-oriented breakdown in Lines.
type FieldChange struct {
	Field      string       `json:"field"`
	ChangeType ChangeType   `json:"changeType"`
	OldValue   any          `json:"oldValue,omitempty"`
	NewValue   any          `json:"newValue,omitempty"`
	Lines      []LineChange `json:"lines,omitempty"`
}

// LineChange is one differing line of a long-text field. LineNumber is
// 1-based; a side that has no such line is reported as an empty string.
type LineChange struct {
	LineNumber int        `json:"lineNumber"`
	OldLine    string     `json:"oldLine"`
	NewLine    string     `json:"newLine"`
	ChangeType ChangeType `json:"changeType"`
}

// Fields diffs two snapshots key by key over the union of their keys and
// returns the changes sorted by field name so output is deterministic.
// Unchanged keys produce no entry.
func Fields(old, new map[string]any) []FieldChange {
	keys := make(map[string]struct{}, len(old)+len(new))
	for k := range old {
		keys[k] = struct{}{}
	}
	for k := range new {
		keys[k] = struct{}{}
	}

	var changes []FieldChange
	for k := range keys {
		ov, inOld := old[k]
		nv, inNew := new[k]
		switch {
		case !inOld:
			changes = append(changes, FieldChange{Field: k, ChangeType: ChangeAdded, NewValue: nv})
		case !inNew:
			changes = append(changes, FieldChange{Field: k, ChangeType: ChangeRemoved, OldValue: ov})
		case !reflect.DeepEqual(ov, nv):
			changes = append(changes, FieldChange{Field: k, ChangeType: ChangeModified, OldValue: ov, NewValue: nv})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Field < changes[j].Field })
	return changes
}

// Lines zips two texts line by line, padding the shorter side with empty
// lines, and reports every position where the sides differ. It is a plain
// positional comparison, not a minimal-edit diff; audit display only needs
// to show what line N used to say.
func Lines(old, new string) []LineChange {
	oldLines := splitLines(old)
	newLines := splitLines(new)
	n := len(oldLines)
	if len(newLines) > n {
		n = len(newLines)
	}

	var changes []LineChange
	for i := 0; i < n; i++ {
		var ol, nl string
		if i < len(oldLines) {
			ol = oldLines[i]
		}
		if i < len(newLines) {
			nl = newLines[i]
		}
		if ol == nl {
			continue
		}
		ct := ChangeModified
		switch {
		case i >= len(oldLines):
			ct = ChangeAdded
		case i >= len(newLines):
			ct = ChangeRemoved
		}
		changes = append(changes, LineChange{LineNumber: i + 1, OldLine: ol, NewLine: nl, ChangeType: ct})
	}
	return changes
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}
