// cmd/imark/main.go
//
// Entry point for imark. It must be started from inside a tmux session so
// criterion context can be shown in a split beside the marking UI.
//
// Flow:
// 1. Load config and the rubric (a bad rubric stops here)
// 2. Find the tmux session we are running in
// 3. Make a scratch directory for this run
// 4. Run the marking UI until every criterion is marked or the marker aborts
// 5. Print the summary and optionally write the report

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/imark/internal/config"
	"github.com/kingrea/imark/internal/logging"
	"github.com/kingrea/imark/internal/marking"
	"github.com/kingrea/imark/internal/report"
	"github.com/kingrea/imark/internal/scheme"
	"github.com/kingrea/imark/internal/tmux"
	"github.com/kingrea/imark/internal/tui"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitAborted = 2
)

type options struct {
	SchemePath string
	Course     string
	Session    string
	Endpoint   string
	Out        string
	ConfigPath string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("imark", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.Endpoint, "endpoint", "", "marking server URL (defaults to the configured template)")
	fs.StringVar(&opts.Out, "out", "", "write the marking report to this YAML file")
	fs.StringVar(&opts.ConfigPath, "config", "", "path to config file (defaults to the user config dir)")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: imark [--endpoint URL] [--out FILE] [--config FILE] <scheme> <course> <session>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() != 3 {
		fs.Usage()
		return options{}, fmt.Errorf("expected 3 arguments, got %d", fs.NArg())
	}
	opts.SchemePath = fs.Arg(0)
	opts.Course = strings.TrimSpace(fs.Arg(1))
	opts.Session = strings.TrimSpace(fs.Arg(2))
	if opts.Course == "" || opts.Session == "" {
		return options{}, errors.New("course and session must not be empty")
	}
	return opts, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "imark: %v\n", err)
		return exitFailure
	}

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		fmt.Fprintf(stderr, "imark: %v\n", err)
		return exitFailure
	}
	rubric, err := scheme.Load(opts.SchemePath)
	if err != nil {
		fmt.Fprintf(stderr, "imark: %v\n", err)
		return exitFailure
	}
	endpoint, err := cfg.Endpoint(opts.Course, opts.Session, opts.Endpoint)
	if err != nil {
		fmt.Fprintf(stderr, "imark: %v\n", err)
		return exitFailure
	}
	sess, err := tmux.CurrentSession()
	if err != nil {
		fmt.Fprintf(stderr, "imark: %v\n", err)
		if errors.Is(err, tmux.ErrNoActiveSession) {
			fmt.Fprintln(stderr, "imark: start tmux first, then run imark inside it")
		}
		return exitFailure
	}

	workDir, err := os.MkdirTemp("", "imark-*")
	if err != nil {
		fmt.Fprintf(stderr, "imark: create work dir: %v\n", err)
		return exitFailure
	}
	defer os.RemoveAll(workDir)

	logPath, err := cfg.LogPath()
	if err != nil {
		fmt.Fprintf(stderr, "imark: %v\n", err)
		return exitFailure
	}
	log, err := logging.New(logPath, cfg.LogLevel())
	if err != nil {
		fmt.Fprintf(stderr, "imark: %v\n", err)
		return exitFailure
	}
	defer log.Close()
	log.Info().
		Str("scheme", opts.SchemePath).
		Str("course", opts.Course).
		Str("session", opts.Session).
		Str("endpoint", endpoint).
		Str("tmux", sess.String()).
		Msg("marking started")

	engineOpts := []marking.Option{marking.WithLogger(log)}
	if cfg.PanesEnabled() {
		engineOpts = append(engineOpts, marking.WithPanes(
			tmux.NewClient(sess),
			marking.PaneOptions{Split: cfg.PaneSplit(), Size: cfg.PaneSize(), Pager: cfg.Pager()},
		))
	}
	session, err := marking.New(rubric, marking.Context{Session: sess, WorkDir: workDir}, engineOpts...)
	if err != nil {
		fmt.Fprintf(stderr, "imark: %v\n", err)
		return exitFailure
	}
	defer func() {
		if err := session.Close(context.Background()); err != nil {
			log.Warn().Err(err).Strs("panes", paneIDs(session.OpenPanes())).Msg("context panes left open")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	title := rubric.Title
	if title == "" {
		title = filepath.Base(opts.SchemePath)
	}
	model := tui.New(ctx, session, tui.WithTitle(title), tui.WithLogger(log))
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		log.Error().Err(err).Msg("ui failed")
		fmt.Fprintf(stderr, "imark: run ui: %v\n", err)
		fmt.Fprintf(stderr, "imark: details in %s\n", log.Path())
		return exitFailure
	}

	res, err := model.Outcome()
	if errors.Is(err, marking.ErrNotFinished) && ctx.Err() != nil {
		// Killed by a signal before the UI could record an outcome.
		err = marking.ErrAborted
	}
	switch {
	case errors.Is(err, marking.ErrAborted):
		log.Info().Msg("marking aborted")
		fmt.Fprintln(stderr, "marking aborted")
		return exitAborted
	case err != nil:
		fmt.Fprintf(stderr, "imark: %v\n", err)
		fmt.Fprintf(stderr, "imark: details in %s\n", log.Path())
		return exitFailure
	}

	rep := report.New(report.Meta{
		Scheme:   opts.SchemePath,
		Course:   opts.Course,
		Session:  opts.Session,
		Endpoint: endpoint,
	}, res)
	log.Info().Str("run_id", rep.RunID).Str("total", res.Total.String()).Msg("marking finished")
	fmt.Fprintln(stdout, rep.Summary())
	if opts.Out != "" {
		if err := rep.WriteFile(opts.Out); err != nil {
			fmt.Fprintf(stderr, "imark: %v\n", err)
			return exitFailure
		}
		fmt.Fprintf(stdout, "Report written to %s\n", opts.Out)
	}
	return exitOK
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, err
		}
		if err := config.EnsureDefault(path); err != nil {
			return nil, err
		}
	}
	return config.Load(path)
}

func paneIDs(ids []tmux.PaneID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}
