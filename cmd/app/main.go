package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/melaconv/internal"
	"github.com/starford/melaconv/internal/mcpserver"
	"github.com/starford/melaconv/internal/mela"
	pkgconfig "github.com/starford/melaconv/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func convert(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return cli.Exit("usage: melaconv convert [--force] <source.melarecipes> <output.paprikarecipes>", 2)
	}
	src, dst := cmd.Args().Get(0), cmd.Args().Get(1)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Bool("force") {
		cfg.Convert.Overwrite = true
	}
	if d := cmd.String("duplicates"); d != "" {
		cfg.Convert.DuplicateNames = d
		if err := cfg.Convert.Validate(); err != nil {
			return fmt.Errorf("invalid --duplicates: %w", err)
		}
	}

	logger := internal.NewLogger(os.Stderr, cfg.App.LogLevel, false)
	svc, err := internal.NewServices(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	n, err := svc.Converter.Convert(ctx, src, dst)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "converted %d recipes into %s\n", n, dst)
	return nil
}

func inspect(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return cli.Exit("usage: melaconv inspect <source.melarecipes>", 2)
	}

	summaries, err := mela.Inspect(cmd.Args().First())

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDINAL\tTITLE\tID")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", s.Ordinal, s.Title, s.ID)
	}
	if flushErr := tw.Flush(); flushErr != nil && err == nil {
		err = flushErr
	}
	return err
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func serveMCP(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// stdout carries the protocol.
	logger := internal.NewLogger(os.Stderr, cfg.App.LogLevel, true)
	slog.SetDefault(logger)

	svc, err := internal.NewServices(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	return mcpserver.New(svc.Converter, svc.Ledger).ServeStdio()
}

func main() {
	cmd := &cli.Command{
		Name:  "melaconv",
		Usage: "Convert Mela recipe exports into Paprika import archives",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (optional)",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("MELACONV_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "convert",
				Usage:     "Convert a .melarecipes export into a .paprikarecipes archive",
				ArgsUsage: "<source> <output>",
				Action:    convert,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Replace the output archive if it exists",
					},
					&cli.StringFlag{
						Name:  "duplicates",
						Usage: "Duplicate recipe name policy: suffix or reject",
					},
				},
			},
			{
				Name:      "inspect",
				Usage:     "List the recipes of a .melarecipes export",
				ArgsUsage: "<source>",
				Action:    inspect,
			},
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, and the watcher when watch.source is set",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
