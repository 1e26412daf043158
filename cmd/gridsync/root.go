package main

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/gridsync/internal/gologger"
	"github.com/mesh-intelligence/gridsync/internal/paths"
	"github.com/mesh-intelligence/gridsync/internal/store"
	"github.com/mesh-intelligence/gridsync/pkg/types"
)

// Exit codes.
const (
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
}

var flags rootFlags

// app holds the process-wide dependencies, wired once in initApp and passed
// down from there rather than read from globals inside the packages.
type app struct {
	log       zerolog.Logger
	state     types.AppState
	statePath string
	store     *store.Store
}

var appCtx *app

var rootCmd = &cobra.Command{
	Use:   "gridsync",
	Short: "gridsync synchronizes tabular working copies with a SQL store",
	Long: `gridsync keeps filtered, editable in-memory copies of database tables
and writes batched edits back to the store. It builds and saves the
queries that load each table, so the last view can be replayed exactly.`,
	SilenceUsage:      true,
	PersistentPreRunE: initApp,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeApp()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	rootCmd.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory holding the database (default: .gridsync-db)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(refreshCmd)
}

// initApp loads configuration and opens the store. The version command runs
// without either.
func initApp(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	log := gologger.NewLogger()

	state, statePath, err := loadState(flags.configDir)
	if err != nil {
		return err
	}

	dbPath, err := paths.DatabasePath(flags.dataDir, "")
	if err != nil {
		return err
	}

	appCtx = &app{
		log:       log,
		state:     state,
		statePath: statePath,
		store: store.New(dbPath, log,
			store.WithRecheck(time.Duration(state.RecheckSeconds)*time.Second)),
	}
	return nil
}

func closeApp() error {
	if appCtx != nil && appCtx.store != nil {
		return appCtx.store.Close()
	}
	return nil
}
