// forkdbtool inspects the fork database file of a data directory: it opens
// the database (which consumes the file), prints a summary of the tree, and
// closes it again so the file is written back in place.
package main

import (
	"fmt"
	"os"

	"github.com/huangminghuang/leap/forkdb"
	"github.com/huangminghuang/leap/infrastructure/logger"
	"github.com/huangminghuang/leap/util/panics"
	"github.com/huangminghuang/leap/version"
)

var log = logger.RegisterSubSystem("FDBT")

func main() {
	defer panics.HandlePanic(log, nil)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}

	if cfg.ShowVersion {
		fmt.Printf("forkdbtool version %s\n", version.Version())
		return
	}

	logLevel, ok := logger.LevelFromString(cfg.LogLevel)
	if !ok {
		fmt.Fprintf(os.Stderr, "invalid log level %q\n", cfg.LogLevel)
		os.Exit(1)
	}
	err = logger.InitLogStdout(logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %s\n", err)
		os.Exit(1)
	}
	logger.SetLogLevels(cfg.LogLevel)

	err = inspect(cfg)
	if err != nil {
		log.Errorf("forkdbtool failed: %+v", err)
		logger.BackendLog().Close()
		os.Exit(1)
	}
	logger.BackendLog().Close()
}

// inspect opens the fork database, prints its shape, and writes it back.
func inspect(cfg *config) error {
	db := forkdb.New(cfg.DataDir)

	// The tool validates nothing; restored activations are accepted as-is.
	err := db.Open(nil)
	if err != nil {
		return err
	}
	// Opening removed the file; make sure it is rewritten whatever happens
	// below.
	defer func() {
		closeErr := db.Close()
		if closeErr != nil {
			log.Errorf("failed to rewrite fork database file: %+v", closeErr)
		}
	}()

	regime := "instant finality"
	if db.InLegacyRegime() {
		regime = "legacy"
	}
	fmt.Printf("regime:  %s\n", regime)

	root := db.Root()
	if root == nil {
		fmt.Println("empty fork database (no file found)")
		return nil
	}

	head := db.Head()
	pending := db.PendingHead()

	fmt.Printf("root:    %s (block %d)\n", root.BlockID(), root.BlockNum())
	fmt.Printf("head:    %s (block %d, irreversible %d)\n", head.BlockID(), head.BlockNum(), head.IrreversibleNum())
	if pending.BlockID() != head.BlockID() {
		fmt.Printf("pending: %s (block %d, not yet validated)\n", pending.BlockID(), pending.BlockNum())
	}

	branch := db.FetchBranch(head.BlockID(), forkdb.MaxBlockNum)
	fmt.Printf("head branch length: %d\n", len(branch))

	if cfg.Branches {
		for _, n := range branch {
			validity := "pending"
			if n.IsValid() {
				validity = "valid"
			}
			fmt.Printf("  %8d %s %s\n", n.BlockNum(), n.BlockID(), validity)
		}
	}

	return nil
}
