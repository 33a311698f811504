// Command xv6fs formats and manipulates xv6 file system images.
//
// Usage:
//
//	xv6fs [-env file] [-image path] command [args...]
//
// Configuration comes from XV6FS_* variables, read from the environment
// and the optional env file.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/tiqwab/xv6fs/config"
)

//nolint:gochecknoglobals
var (
	ExitCode = 0

	envFile   = flag.String("env", "", "load configuration from this env file")
	imagePath = flag.String("image", "", "disk image (overrides "+config.KeyImage+")")
)

func setupLogging(level slog.Level) {
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		}),
	))
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "usage: %s [flags] command [args...]\n\ncommands:\n", os.Args[0])
	for _, c := range commands {
		fmt.Fprintf(out, "  %-6s %s\n", c.name, c.args)
	}
	fmt.Fprintf(out, "\nflags:\n")
	flag.PrintDefaults()
}

func loadConfig() (config.Config, error) {
	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return cfg, err
	}
	if *imagePath != "" {
		cfg.Image = *imagePath
	}
	return cfg, nil
}

func main() {
	defer func() {
		os.Exit(ExitCode)
	}()

	flag.Usage = usage
	flag.Parse()
	setupLogging(slog.LevelInfo)

	if flag.NArg() == 0 {
		flag.Usage()
		ExitCode = 2
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load configuration.",
			"err", err,
		)
		ExitCode = 1
		return
	}
	if cfg.Debug > 0 {
		setupLogging(slog.LevelDebug)
	}

	if err := run(cfg, flag.Args(), os.Stdout); err != nil {
		slog.Error("Command failed.",
			"command", flag.Arg(0),
			"err", err,
		)
		ExitCode = 1
	}
}
