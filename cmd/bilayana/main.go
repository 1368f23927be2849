// Command bilayana runs one membrane analysis with the settings of a
// YAML configuration file:
//
//	bilayana [-v] [-gmx BIN] <command> <config.yaml>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/FabKe91/BilayAna/pkg/cfg"
)

func main() {
	verbose := flag.Bool("v", false, "enable debug logging")
	gmxBin := flag.String("gmx", "", "gromacs executable (overrides the config)")
	flag.Usage = usage
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "bilayana",
	})
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	if flag.NArg() != 2 {
		usage()
		os.Exit(2)
	}
	command, cfgPath := flag.Arg(0), flag.Arg(1)

	run, ok := commands()[command]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", command)
		usage()
		os.Exit(2)
	}

	logger.Info("reading configuration file", "path", cfgPath)
	c, err := cfg.New(cfgPath)
	if err != nil {
		logger.Fatal("configuration", "err", err)
	}
	c.Log = logger
	if *gmxBin != "" {
		c.Gmx = *gmxBin
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("running analysis", "command", command)
	if err := run(ctx, c); err != nil {
		logger.Fatal("analysis failed", "command", command, "err", err)
	}
	logger.Info("done", "command", command)
}

type runFunc func(context.Context, *cfg.Cfg) error

func plain(f func(*cfg.Cfg) error) runFunc {
	return func(_ context.Context, c *cfg.Cfg) error { return f(c) }
}

func commands() map[string]runFunc {
	return map[string]runFunc{
		"sysinfo": plain(func(c *cfg.Cfg) error {
			_, err := c.SysInfo()
			return err
		}),
		"leaflets":     plain((*cfg.Cfg).Leaflets),
		"leaflettraj":  plain((*cfg.Cfg).LeafletTrajectory),
		"flipflop":     plain((*cfg.Cfg).FlipFlops),
		"interleaflet": plain((*cfg.Cfg).Interleaflet),
		"thickness":    plain((*cfg.Cfg).Thickness),
		"neighbors": plain(func(c *cfg.Cfg) error {
			_, err := c.Neighbors()
			return err
		}),
		"pofn": plain((*cfg.Cfg).PofN),
		"msd": plain(func(c *cfg.Cfg) error {
			if c.PBC {
				if err := c.Conv(); err != nil {
					return err
				}
			}
			return c.MSD()
		}),
		"conv":       plain((*cfg.Cfg).Conv),
		"rdf":        plain((*cfg.Cfg).RDF),
		"order":      plain((*cfg.Cfg).Order),
		"nofs":       plain((*cfg.Cfg).NofS),
		"eofs":       plain((*cfg.Cfg).EofS),
		"lateral":    plain((*cfg.Cfg).LateralDistribution),
		"energy": func(ctx context.Context, c *cfg.Cfg) error {
			return c.EnergyRun(ctx)
		},
		"energyfile": plain((*cfg.Cfg).EnergyFile),
	}
}

func usage() {
	names := make([]string, 0)
	for name := range commands() {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(os.Stderr, "usage: bilayana [-v] [-gmx BIN] <command> <config.yaml>\n\ncommands:\n")
	for _, n := range names {
		fmt.Fprintf(os.Stderr, "  %s\n", n)
	}
	flag.PrintDefaults()
}
