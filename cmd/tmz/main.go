// Command tmz is the foreground CLI: it reads and searches the local cache,
// sends messages, manages credentials and aliases, and controls the daemon.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tmzdev/tmz/internal/auth"
	"github.com/tmzdev/tmz/internal/config"
	"github.com/tmzdev/tmz/internal/logging"
	"github.com/tmzdev/tmz/internal/paths"
	"github.com/tmzdev/tmz/internal/store"
	"github.com/tmzdev/tmz/internal/teams"
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tmz",
		Short:         "Local-first Teams chat client",
		Long:          "tmz reads and searches a locally cached copy of your Teams conversations,\nand sends messages through the chat service. A background daemon keeps the\ncache and credentials fresh.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newAuthCmd(),
		newSyncCmd(),
		newListCmd(),
		newReadCmd(),
		newSendCmd(),
		newSendFileCmd(),
		newSearchCmd(),
		newFindCmd(),
		newFetchCmd(),
		newAliasCmd(),
		newDaemonCmd(),
		newConfigCmd(),
		newCacheCmd(),
	)

	return rootCmd
}

// app bundles the collaborators a command needs. Each command builds only
// what it uses via the open* helpers.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *store.DB
	auth   *auth.Manager
}

func newApp() (*app, error) {
	if err := paths.EnsureDirs(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(paths.ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := logging.NewFileOnly(filepath.Join(paths.LogDir(), "tmz.log"), cfg.Logging.Level, "tmz")
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) openStore() (*store.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := store.Open(paths.CacheDBPath())
	if err != nil {
		return nil, err
	}
	if _, err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	a.db = db
	return db, nil
}

func (a *app) authManager() *auth.Manager {
	if a.auth == nil {
		storage := auth.NewStorage(paths.TokensPath())
		login := auth.NewScriptLogin(a.logger)
		a.auth = auth.NewManager(storage, login, a.logger)
	}
	return a.auth
}

func (a *app) client() *teams.Client {
	return teams.NewClient(a.authManager(), a.logger)
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	_ = a.logger.Sync()
}
