// Package report prints annotation results as aligned text tables.
package report

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"

	"github.com/speakeasy-api/annotator/annotation"
	"github.com/speakeasy-api/annotator/fixpoint"
	"github.com/speakeasy-api/annotator/flowgraph"
)

const (
	colorReset   = "\x1b[0m"
	colorHeading = "\x1b[1;34m"
	colorName    = "\x1b[36m"
	colorWarning = "\x1b[33m"
	colorBottom  = "\x1b[90m"
)

// Options controls the layout of a report.
type Options struct {
	// Color enables ANSI colors.
	Color bool
	// MaxWidth truncates values wider than this many columns. 0 disables
	// truncation.
	MaxWidth int
	// ShowBottom includes variables that were never reached.
	ShowBottom bool
	// ShowStats appends the bookkeeper counters.
	ShowStats bool
}

// ColorEnabled reports whether f is a terminal that should get colored
// output. NO_COLOR disables colors.
func ColorEnabled(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Row is one line of a section.
type Row struct {
	Name  string
	Value string
	Dim   bool
}

// Section is a titled group of rows.
type Section struct {
	Title string
	Rows  []Row
}

// Build lays out the sections of a result: returns, bindings, warnings and
// optionally stats.
func Build(res *fixpoint.Result, opts Options) []Section {
	var sections []Section

	returns := Section{Title: "returns"}
	names := make([]string, 0, len(res.Returns))
	for n := range res.Returns {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		returns.Rows = append(returns.Rows, valueRow(n, res.Returns[n]))
	}
	sections = append(sections, returns)

	bindings := Section{Title: "bindings"}
	ids := make([]flowgraph.VarID, 0, len(res.Bindings))
	for id := range res.Bindings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	for _, id := range ids {
		v := res.Bindings[id]
		if v.IsBottom() && !opts.ShowBottom {
			continue
		}
		bindings.Rows = append(bindings.Rows, valueRow(id.String(), v))
	}
	sections = append(sections, bindings)

	if len(res.Warnings) > 0 {
		warnings := Section{Title: "warnings"}
		for i, w := range res.Warnings {
			warnings.Rows = append(warnings.Rows, Row{Name: strconv.Itoa(i + 1), Value: w})
		}
		sections = append(sections, warnings)
	}

	if opts.ShowStats && len(res.Stats) > 0 {
		stats := Section{Title: "stats"}
		keys := make([]string, 0, len(res.Stats))
		for k := range res.Stats {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			stats.Rows = append(stats.Rows, Row{Name: k, Value: strconv.Itoa(res.Stats[k])})
		}
		stats.Rows = append(stats.Rows, Row{Name: "iterations", Value: strconv.Itoa(res.Iterations)})
		sections = append(sections, stats)
	}
	return sections
}

func valueRow(name string, v *annotation.Value) Row {
	if v.IsBottom() {
		return Row{Name: name, Value: "Bottom", Dim: true}
	}
	return Row{Name: name, Value: v.String()}
}

// Write prints the sections of res to w.
func Write(w io.Writer, res *fixpoint.Result, opts Options) error {
	return WriteSections(w, Build(res, opts), opts)
}

// WriteSections prints sections with the names of each section padded to
// a common display width.
func WriteSections(w io.Writer, sections []Section, opts Options) error {
	for i, s := range sections {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w, paint(opts, colorHeading, s.Title+":")); err != nil {
			return err
		}
		if len(s.Rows) == 0 {
			if _, err := fmt.Fprintln(w, "  "+paint(opts, colorBottom, "(none)")); err != nil {
				return err
			}
			continue
		}

		width := 0
		for _, r := range s.Rows {
			width = max(width, runewidth.StringWidth(r.Name))
		}
		valueColor := ""
		if s.Title == "warnings" {
			valueColor = colorWarning
		}
		for _, r := range s.Rows {
			value := r.Value
			if opts.MaxWidth > 0 {
				value = runewidth.Truncate(value, opts.MaxWidth, "...")
			}
			color := valueColor
			if r.Dim {
				color = colorBottom
			}
			name := paint(opts, colorName, runewidth.FillRight(r.Name, width))
			if _, err := fmt.Fprintf(w, "  %s  %s\n", name, paint(opts, color, value)); err != nil {
				return err
			}
		}
	}
	return nil
}

func paint(opts Options, color, s string) string {
	if !opts.Color || color == "" {
		return s
	}
	return color + s + colorReset
}
