// Command fbascout analyzes Amazon FBA sourcing candidates: fee and ROI
// math, decoded price history and batch runs over ASIN/UPC lists.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/guarzo/fbascout/internal/config"
)

const defaultConfigPath = "fbascout.yaml"

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, args []string, out io.Writer) error
}

var commands = []command{
	{"batch", "analyze a list of ASINs and UPCs", runBatch},
	{"fees", "compute FBA fees and profitability for one item", runFees},
	{"classify", "classify identifiers as ASIN, UPC or invalid", runClassify},
	{"history", "decode and summarize an ASIN's price history", runHistory},
	{"serve", "run the HTTP API", runServe},
	{"watch", "re-run a watchlist on a schedule and print alerts", runWatch},
	{"runs", "list, inspect or prune stored batch runs", runRuns},
	{"upc", "list learned UPC to ASIN mappings", runUPC},
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := dispatch(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

func dispatch(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		usage(stderr)
		if len(args) == 0 {
			return 2
		}
		return 0
	}

	for _, c := range commands {
		if c.name != args[0] {
			continue
		}
		err := c.run(ctx, args[1:], stdout)
		switch {
		case err == nil, errors.Is(err, flag.ErrHelp):
			return 0
		case errors.Is(err, errUsage):
			return 2
		}
		slog.Error(c.name+" failed", "err", err)
		return 1
	}

	fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
	usage(stderr)
	return 2
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: fbascout <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "run 'fbascout <command> -h' for command flags")
}

// errUsage marks argument errors already reported to the user.
var errUsage = errors.New("usage error")

// globalFlags are accepted by every subcommand.
type globalFlags struct {
	configPath string
	verbose    bool
	logFormat  string
}

func newFlagSet(name string) (*flag.FlagSet, *globalFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	g := &globalFlags{}
	fs.StringVar(&g.configPath, "config", defaultConfigPath, "path to config file (optional)")
	fs.BoolVar(&g.verbose, "verbose", false, "set log level to debug")
	fs.StringVar(&g.logFormat, "log-format", "", "log format: text|json (overrides config)")
	return fs, g
}

// setup loads the configuration and installs the default logger. Logs go to
// stderr so command output on stdout stays machine-readable.
func (g *globalFlags) setup() (*config.Config, error) {
	cfg, err := config.LoadOptional(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.verbose {
		cfg.Log.Level = "debug"
	}
	if g.logFormat != "" {
		cfg.Log.Format = g.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	slog.SetDefault(cfg.Log.NewLogger(os.Stderr))
	return cfg, nil
}
