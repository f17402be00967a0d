package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	photoaffix "github.com/Skryldev/photo-affix"
	"github.com/Skryldev/photo-affix/adapters/gallery"
	"github.com/Skryldev/photo-affix/config"
	"github.com/Skryldev/photo-affix/core"
	"github.com/Skryldev/photo-affix/hooks"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	logLevel   string
	dir        string
	outputDir  string

	cfg    config.Config
	logger *hooks.SlogLogger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "affix",
		Short: "Affix stitches photos side by side or top to bottom",
		Long: `Affix combines several photos into one image, scaling them to a common
height (horizontal stacking) or width (vertical stacking) with optional
spacing and background fill.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.ErrOrStderr())
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML config file")
	pf.StringVar(&a.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	pf.StringVar(&a.dir, "dir", "", "take photos from this directory when none are given")
	pf.StringVar(&a.outputDir, "output", "", "output directory override")

	rootCmd.AddCommand(newSizeCmd(a))
	rootCmd.AddCommand(newStitchCmd(a))
	rootCmd.AddCommand(newHistoryCmd(a))
	return rootCmd
}

func (a *app) init(logOut io.Writer) error {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.outputDir != "" {
		cfg.Output.Dir = a.outputDir
	}
	if cfg.MediaIndex == "" {
		cfg.MediaIndex = filepath.Join(cfg.Output.Dir, cfg.Output.AppName, "media.db")
	}
	a.cfg = cfg
	a.logger = hooks.NewSlogLogger(newLogger(logOut, cfg.LogLevel, cfg.LogFormat))
	return nil
}

// newLogger returns a slog.Logger with the provided level string (info,
// debug, warn, error).  format may be "json" or "text".
func newLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// photos turns arguments into a photo list, falling back to --dir.
func (a *app) photos(ctx context.Context, args []string) ([]core.Photo, error) {
	ld := gallery.NewLoader(a.logger)
	if len(args) > 0 {
		return ld.Paths(args), nil
	}
	if a.dir == "" {
		return nil, fmt.Errorf("no photos given; pass paths or --dir")
	}
	return ld.Load(ctx, a.dir)
}

// affixer builds and starts an Affixer for one command run.
func (a *app) affixer() (*photoaffix.Affixer, error) {
	af, err := photoaffix.New(a.cfg, photoaffix.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	af.Start()
	return af, nil
}
