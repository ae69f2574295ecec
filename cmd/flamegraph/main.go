package main

import (
	"context"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type CLI struct {
	Aggregate AggregateFlags `embed:""`
	LogLevel  string         `help:"Minimum level of logged events." default:"warn" enum:"debug,info,warn,error"`

	View       ViewCmd       `cmd:"" help:"Print the aggregated call tree as indented text."`
	Speedscope SpeedscopeCmd `cmd:"" help:"Export the aggregated call tree to the speedscope format."`
}

func run(ctx context.Context, stdout, stderr io.Writer, exit func(int), args ...string) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("flamegraph"),
		kong.Description("Aggregate sampled profiles into a single flamegraph."),
		kong.UsageOnError(),
		kong.Exit(exit),
		kong.Writers(stdout, stderr),
		kong.BindSingletonProvider(func() context.Context {
			return ctx
		}),
		kong.BindTo(stdout, (*io.Writer)(nil)),
	)
	if err != nil {
		return err
	}

	ktx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(cli.LogLevel)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: stderr})

	return ktx.Run(&cli)
}

func main() {
	err := run(context.Background(), os.Stdout, os.Stderr, os.Exit, os.Args[1:]...)
	if err != nil {
		log.Error().Err(err).Msg("run failed")
		os.Exit(1)
	}
}
