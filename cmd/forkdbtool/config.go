package main

import (
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

const defaultLogLevel = "info"

// config defines the configuration options for forkdbtool.
//
// See loadConfig for details on the configuration load process.
type config struct {
	DataDir     string `short:"b" long:"datadir" description:"Directory containing the fork database file"`
	LogLevel    string `short:"d" long:"loglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`
	Branches    bool   `long:"branches" description:"Print the blocks of the head branch, tip first (other branches are not printed)"`
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
}

// loadConfig initializes and parses the config using command line options.
func loadConfig() (*config, error) {
	cfg := config{
		LogLevel: defaultLogLevel,
	}

	parser := flags.NewParser(&cfg, flags.Default)
	_, err := parser.Parse()
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, err
	}

	if cfg.DataDir == "" {
		return nil, errors.New("--datadir is required")
	}
	cfg.DataDir = filepath.Clean(cfg.DataDir)

	return &cfg, nil
}
