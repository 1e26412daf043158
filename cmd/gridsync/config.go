// Config loading for the gridsync CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/gridsync/internal/paths"
	"github.com/mesh-intelligence/gridsync/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"
)

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# gridsync configuration

# Loaded result sets above this row count trigger a truncation warning.
row_limit: 5000

# Seconds a successful store reachability probe stays cached.
recheck_seconds: 60

# Reject all cell edits at the cache boundary.
read_only: false

# Last rendered SQL per table, replayed by "load --last".
last_queries: {}
`

// loadState reads the application state from config.yaml in the resolved
// config directory, creating the directory and a default file on first run.
// Returns the state and the path it is persisted to.
func loadState(configDirFlag string) (types.AppState, string, error) {
	configDir, err := paths.ResolveConfigDir(configDirFlag)
	if err != nil {
		return types.AppState{}, "", fmt.Errorf("resolving config dir: %w", err)
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return types.AppState{}, "", fmt.Errorf("creating config dir: %w", err)
	}

	statePath := filepath.Join(configDir, configFileExt)
	if _, err := os.Stat(statePath); os.IsNotExist(err) {
		if err := os.WriteFile(statePath, []byte(defaultConfigYAML), 0o644); err != nil {
			return types.AppState{}, "", fmt.Errorf("writing default config: %w", err)
		}
	}

	v := viper.New()
	def := types.DefaultAppState()
	v.SetDefault("row_limit", def.RowLimit)
	v.SetDefault("recheck_seconds", def.RecheckSeconds)
	v.SetDefault("read_only", def.ReadOnly)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return types.AppState{}, "", fmt.Errorf("reading config: %w", err)
		}
	}

	state := types.AppState{
		RowLimit:       v.GetInt("row_limit"),
		RecheckSeconds: v.GetInt("recheck_seconds"),
		ReadOnly:       v.GetBool("read_only"),
		LastQueries:    v.GetStringMapString("last_queries"),
	}
	if state.LastQueries == nil {
		state.LastQueries = map[string]string{}
	}
	if err := state.Validate(); err != nil {
		return types.AppState{}, "", fmt.Errorf("config %s: %w", statePath, err)
	}
	return state, statePath, nil
}

// saveState persists the application state back to its config file.
func saveState(state types.AppState, statePath string) error {
	out, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(statePath, out, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "config file:     %s\n", appCtx.statePath)
		fmt.Fprintf(out, "row_limit:       %d\n", appCtx.state.RowLimit)
		fmt.Fprintf(out, "recheck_seconds: %d\n", appCtx.state.RecheckSeconds)
		fmt.Fprintf(out, "read_only:       %t\n", appCtx.state.ReadOnly)
		for key, sql := range appCtx.state.LastQueries {
			fmt.Fprintf(out, "%s: %s\n", key, sql)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configSetCmd)
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value and persist it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		state := appCtx.state

		switch key {
		case "row_limit":
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("row_limit: %w", err)
			}
			state.RowLimit = n
		case "recheck_seconds":
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("recheck_seconds: %w", err)
			}
			state.RecheckSeconds = n
		case "read_only":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("read_only: %w", err)
			}
			state.ReadOnly = b
		default:
			return fmt.Errorf("unknown config key %q", key)
		}

		if err := state.Validate(); err != nil {
			return err
		}
		if err := saveState(state, appCtx.statePath); err != nil {
			return err
		}
		appCtx.state = state
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, val)
		return nil
	},
}
