package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/speakeasy-api/annotator/annotation"
	"github.com/speakeasy-api/annotator/fixpoint"
	"github.com/speakeasy-api/annotator/flowgraph"
	"github.com/speakeasy-api/annotator/pkg/export"
	"github.com/speakeasy-api/annotator/pkg/report"
)

// argTypes maps the names accepted by -args to entry argument values.
var argTypes = map[string]func() *annotation.Value{
	"int":     annotation.Int,
	"nonneg":  annotation.NonnegInt,
	"uint":    func() *annotation.Value { return annotation.IntOf(false, true, 0) },
	"bool":    annotation.Bool,
	"float":   annotation.Float,
	"str":     annotation.Str,
	"char":    annotation.Char,
	"unicode": annotation.UnicodeStr,
	"none":    annotation.None,
	"top":     annotation.Top,
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "annotate: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("annotate", flag.ContinueOnError)
	entry := fs.String("entry", "main", "function to start the annotation from")
	entryArgs := fs.String("args", "", "comma separated entry argument types ("+argTypeNames()+")")
	format := fs.String("format", "report", "output format: report or yaml")
	strict := fs.Bool("strict", false, "treat precision loss as an error")
	logLevel := fs.String("log-level", "warn", "log level: error, warn, info or debug")
	maxIterations := fs.Int("max-iterations", 100000, "maximum number of block visits, 0 for no limit")
	maxTuple := fs.Int("max-tuple-arity", 64, "tuples longer than this degrade to Top, 0 for no limit")
	stats := fs.Bool("stats", false, "include counters in the report")
	all := fs.Bool("all", false, "include unreached variables in the report")
	color := fs.String("color", "auto", "colorize the report: auto, always or never")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: annotate [flags] <graph.yaml>\n\nFlags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("expected exactly one flow graph file")
	}

	values, err := parseArgTypes(*entryArgs)
	if err != nil {
		return err
	}

	g, err := flowgraph.Load(fs.Arg(0))
	if err != nil {
		return err
	}

	opts := fixpoint.DefaultOptions()
	opts.StrictMode = *strict
	opts.LogLevel = *logLevel
	opts.MaxIterations = *maxIterations
	opts.MaxTupleArity = *maxTuple

	a, err := fixpoint.New(g, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := a.Run(ctx, *entry, values...)
	if err != nil {
		return err
	}

	switch *format {
	case "report":
		ropts := report.Options{ShowStats: *stats, ShowBottom: *all}
		switch *color {
		case "always":
			ropts.Color = true
		case "never":
		case "auto":
			ropts.Color = report.ColorEnabled(os.Stdout)
		default:
			return fmt.Errorf("unknown color mode %q", *color)
		}
		return report.Write(os.Stdout, res, ropts)
	case "yaml":
		e := export.New(a.Bookkeeper())
		return export.WriteYAML(os.Stdout, export.Document{
			Title:   fs.Arg(0),
			Schemas: e.Schemas(res.Bindings),
		})
	default:
		return fmt.Errorf("unknown format %q", *format)
	}
}

func parseArgTypes(s string) ([]*annotation.Value, error) {
	if s == "" {
		return nil, nil
	}
	var values []*annotation.Value
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		mk, ok := argTypes[name]
		if !ok {
			return nil, fmt.Errorf("unknown argument type %q", name)
		}
		values = append(values, mk())
	}
	return values, nil
}

func argTypeNames() string {
	return "int, nonneg, uint, bool, float, str, char, unicode, none, top"
}
