package apitest

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/olekukonko/tablewriter"
)

// Aspect names the part of a response a mismatch was found in.
type Aspect string

const (
	AspectStatus Aspect = "status"
	AspectHeader Aspect = "header"
	AspectBody   Aspect = "body"
	AspectSchema Aspect = "schema"
)

// Mismatch is a single discrepancy between expected and actual.
type Mismatch struct {
	Aspect   Aspect
	Path     string
	Expected string
	Actual   string
}

func (m Mismatch) String() string {
	if m.Path == "" {
		return fmt.Sprintf("%s: expected %s, got %s", m.Aspect, m.Expected, m.Actual)
	}
	return fmt.Sprintf("%s %s: expected %s, got %s", m.Aspect, m.Path, m.Expected, m.Actual)
}

// Report is the ordered outcome of one comparison. Empty means pass.
type Report struct {
	Entries []Mismatch
}

// OK reports whether no mismatches were recorded.
func (r Report) OK() bool {
	return len(r.Entries) == 0
}

// Filter returns the entries for one aspect.
func (r Report) Filter(aspect Aspect) []Mismatch {
	var out []Mismatch
	for _, m := range r.Entries {
		if m.Aspect == aspect {
			out = append(out, m)
		}
	}
	return out
}

func (r *Report) merge(entries []Mismatch) {
	r.Entries = append(r.Entries, entries...)
}

const maxCellWidth = 60

// Render formats the report as a table suitable for test failure output.
func (r Report) Render() string {
	if r.OK() {
		return "no mismatches"
	}

	var sb strings.Builder
	table := tablewriter.NewWriter(&sb)
	table.SetHeader([]string{"Aspect", "Path", "Expected", "Actual"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetRowLine(false)
	for _, m := range r.Entries {
		table.Append([]string{string(m.Aspect), m.Path, truncate(m.Expected), truncate(m.Actual)})
	}
	table.Render()
	return sb.String()
}

func truncate(s string) string {
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	if utf8.RuneCountInString(s) <= maxCellWidth {
		return s
	}
	return string([]rune(s)[:maxCellWidth-3]) + "..."
}
