package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/starford/doclife/internal"
	"github.com/starford/doclife/internal/docservice"
	"github.com/starford/doclife/internal/lifecycle"
	"github.com/starford/doclife/internal/models"
)

// errViolations makes `check` exit non-zero without an extra log line.
var errViolations = errors.New("documentation violations found")

func commands() []*cli.Command {
	executeFlag := &cli.BoolFlag{Name: "execute", Usage: "Apply the moves instead of printing them"}
	return []*cli.Command{
		{
			Name:   "serve",
			Usage:  "Run the HTTP API, SSE stream and vault watcher",
			Action: serve,
		},
		{
			Name:   "mcp",
			Usage:  "Serve the MCP tools over stdio",
			Action: serveMCP,
		},
		{
			Name:   "sync",
			Usage:  "Reconcile the registry with the vault",
			Action: withService(runSync),
		},
		{
			Name:      "check",
			Usage:     "Lint one document, or the whole vault",
			ArgsUsage: "[path]",
			Action:    withService(runCheck),
		},
		{
			Name:      "classify",
			Usage:     "Classify file names as exempt or timestamped",
			ArgsUsage: "name...",
			Action:    withService(runClassify),
		},
		{
			Name:  "new",
			Usage: "Create a named, stamped document",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Required: true},
				&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Required: true},
				&cli.StringFlag{Name: "purpose", Aliases: []string{"p"}, Required: true},
				&cli.StringFlag{Name: "dir"},
				&cli.StringFlag{Name: "author"},
				&cli.StringFlag{Name: "body-file", Usage: "Read the body from this file; - for stdin"},
			},
			Action: withService(runNew),
		},
		{
			Name:      "stamp",
			Usage:     "Add a missing header or fix its filename field",
			ArgsUsage: "path...",
			Action:    withService(runStamp),
		},
		{
			Name:      "touch",
			Usage:     "Record a content change in a document header",
			ArgsUsage: "path",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "note", Aliases: []string{"m"}, Value: "Content updated"},
			},
			Action: withService(runTouch),
		},
		{
			Name:      "archive",
			Usage:     "Archive one document, or sweep everything that is due",
			ArgsUsage: "[path]",
			Flags:     []cli.Flag{executeFlag},
			Action:    withService(runArchive),
		},
		{
			Name:   "rename",
			Usage:  "Rename legacy documents to the naming convention",
			Flags:  []cli.Flag{executeFlag},
			Action: withService(runRename),
		},
		{
			Name:      "audit",
			Usage:     "Show the lifecycle event trail",
			ArgsUsage: "[path]",
			Action:    withService(runAudit),
		},
	}
}

type serviceAction func(ctx context.Context, cmd *cli.Command, svc *docservice.Service) error

// withService opens the runtime with human-readable logging for a one-shot
// command and closes it afterwards.
func withService(fn serviceAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		format := cfg.App.LogFormat
		if format == internal.LogFormatAuto {
			format = internal.LogFormatText
		}
		logger := internal.NewLogger(os.Stderr, cfg.App.LogLevel, format)
		rt, err := internal.Open(internal.WithConfig(cfg), internal.WithLogger(logger))
		if err != nil {
			return err
		}
		defer rt.Close()
		return fn(ctx, cmd, rt.Service)
	}
}

func runSync(ctx context.Context, cmd *cli.Command, svc *docservice.Service) error {
	if _, err := svc.CheckAll(ctx); err != nil {
		return err
	}
	sum, err := svc.Summary(ctx)
	if err != nil {
		return err
	}
	w := cmd.Root().Writer
	fmt.Fprintf(w, "%d documents, %d with violations\n", sum.Documents, sum.WithViolations)
	for loc, n := range sum.ByLocation {
		fmt.Fprintf(w, "  %-22s %d\n", loc, n)
	}
	return nil
}

func runCheck(ctx context.Context, cmd *cli.Command, svc *docservice.Service) error {
	var vs []models.Violation
	if p := cmd.Args().First(); p != "" {
		doc, err := svc.Check(ctx, p)
		if err != nil {
			return err
		}
		vs = doc.Violations
	} else {
		var err error
		if vs, err = svc.CheckAll(ctx); err != nil {
			return err
		}
	}
	failed := printViolations(cmd.Root().Writer, vs)
	if failed {
		return errViolations
	}
	return nil
}

func printViolations(w io.Writer, vs []models.Violation) bool {
	failed := false
	for _, v := range vs {
		fmt.Fprintf(w, "%s: %s [%s] %s\n", v.Path, v.Severity, v.Rule, v.Message)
		if v.Severity == models.SeverityError {
			failed = true
		}
	}
	if len(vs) == 0 {
		fmt.Fprintln(w, "no violations")
	}
	return failed
}

func runClassify(_ context.Context, cmd *cli.Command, svc *docservice.Service) error {
	if cmd.Args().Len() == 0 {
		return fmt.Errorf("classify: at least one name is required")
	}
	w := cmd.Root().Writer
	invalid := false
	for _, name := range cmd.Args().Slice() {
		cl := svc.Classify(name)
		switch {
		case cl.Err != nil:
			invalid = true
			fmt.Fprintf(w, "%s\t%s\tinvalid: %v\n", cl.Filename, cl.Category, cl.Err)
		case cl.Rule != "":
			fmt.Fprintf(w, "%s\t%s\t%s\n", cl.Filename, cl.Category, cl.Rule)
		default:
			fmt.Fprintf(w, "%s\t%s\tcreated %s\n", cl.Filename, cl.Category, cl.CreatedAt.Format("2006-01-02 15:04"))
		}
	}
	if invalid {
		return errViolations
	}
	return nil
}

func runNew(ctx context.Context, cmd *cli.Command, svc *docservice.Service) error {
	var body []byte
	switch f := cmd.String("body-file"); f {
	case "":
	case "-":
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		body = b
	default:
		b, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		body = b
	}
	d, err := svc.Create(ctx, docservice.CreateRequest{
		Type:        cmd.String("type"),
		Description: cmd.String("description"),
		Purpose:     cmd.String("purpose"),
		Dir:         cmd.String("dir"),
		Author:      cmd.String("author"),
		Body:        string(body),
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.Root().Writer, d.Path)
	return nil
}

func runStamp(ctx context.Context, cmd *cli.Command, svc *docservice.Service) error {
	if cmd.Args().Len() == 0 {
		return fmt.Errorf("stamp: at least one path is required")
	}
	w := cmd.Root().Writer
	for _, p := range cmd.Args().Slice() {
		changed, err := svc.Stamp(ctx, p)
		if err != nil {
			return err
		}
		if changed {
			fmt.Fprintf(w, "stamped %s\n", p)
		} else {
			fmt.Fprintf(w, "unchanged %s\n", p)
		}
	}
	return nil
}

func runTouch(ctx context.Context, cmd *cli.Command, svc *docservice.Service) error {
	p := cmd.Args().First()
	if p == "" {
		return fmt.Errorf("touch: path is required")
	}
	doc, err := svc.Touch(ctx, p, cmd.String("note"))
	if err != nil {
		return err
	}
	v := 0
	if doc.Header != nil {
		v = doc.Header.Version
	}
	fmt.Fprintf(cmd.Root().Writer, "%s now at version %d\n", doc.Path, v)
	return nil
}

func runArchive(ctx context.Context, cmd *cli.Command, svc *docservice.Service) error {
	w := cmd.Root().Writer
	if p := cmd.Args().First(); p != "" {
		m, err := svc.Archive(ctx, p)
		if err != nil {
			return err
		}
		printMoves(w, []lifecycle.Move{*m}, false)
		return nil
	}
	dryRun := !cmd.Bool("execute")
	moves, err := svc.Sweep(ctx, dryRun)
	if err != nil {
		return err
	}
	printMoves(w, moves, dryRun)
	return nil
}

func runRename(ctx context.Context, cmd *cli.Command, svc *docservice.Service) error {
	execute := cmd.Bool("execute")
	moves, err := svc.Renames(ctx, execute)
	if err != nil {
		return err
	}
	printMoves(cmd.Root().Writer, moves, !execute)
	return nil
}

func printMoves(w io.Writer, moves []lifecycle.Move, dryRun bool) {
	verb := "moved"
	if dryRun {
		verb = "would move"
	}
	for _, m := range moves {
		fmt.Fprintf(w, "%s %s -> %s (%s)\n", verb, m.From, m.To, m.Reason)
	}
	if len(moves) == 0 {
		fmt.Fprintln(w, "nothing to do")
	} else if dryRun {
		fmt.Fprintln(w, "re-run with --execute to apply")
	}
}

func runAudit(ctx context.Context, cmd *cli.Command, svc *docservice.Service) error {
	events, err := svc.Events(ctx, cmd.Args().First(), 100)
	if err != nil {
		return err
	}
	w := cmd.Root().Writer
	for _, ev := range events {
		line := fmt.Sprintf("%s %-10s %s", ev.At.Format("2006-01-02 15:04:05"), ev.Kind, ev.Path)
		if ev.From != "" && ev.From != ev.Path {
			line += " (from " + ev.From + ")"
		}
		if ev.Detail != "" {
			line += ": " + ev.Detail
		}
		fmt.Fprintln(w, line)
	}
	return nil
}
