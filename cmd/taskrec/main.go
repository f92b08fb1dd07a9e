package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/cyp0633/libtaskrec/config"
	"github.com/cyp0633/libtaskrec/internal/clock"
)

type CLI struct {
	EnvFile []string `help:"Read variables from these .env files instead of ./.env." name:"env-file" type:"path" placeholder:"FILE"`

	Next     NextCmd     `cmd:"" help:"Print the successor of a completed recurring task."`
	Lead     LeadCmd     `cmd:"" help:"Print the suggested reminder lead time in minutes."`
	Estimate EstimateCmd `cmd:"" help:"Print the estimated effort in hours."`
	Ics      IcsCmd      `cmd:"" help:"Print a task as an iCalendar VTODO."`
	Publish  PublishCmd  `cmd:"" help:"Upload a task to the configured CalDAV collection."`
}

// app carries what every command needs once flags and configuration are read.
type app struct {
	cfg    config.Config
	clock  clock.Clock
	out    io.Writer
	logger *slog.Logger
}

func run(args []string, stdout, stderr io.Writer, clk clock.Clock) error {
	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("taskrec"),
		kong.Description("Recurring task and reminder tools."),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
	)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	boot := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg, err := config.Load(boot, cli.EnvFile...)
	if err != nil {
		return err
	}

	return kctx.Run(&app{
		cfg:    cfg,
		clock:  clk,
		out:    stdout,
		logger: cfg.NewLogger(stderr),
	})
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr, clock.RealClock{}); err != nil {
		fmt.Fprintln(os.Stderr, "taskrec:", err)
		os.Exit(1)
	}
}
