// Package commands provides CLI command implementations.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aiengine/aiengine-go/pkg/aiengine"
)

// Engine construction flags shared by all commands that need an engine.
var (
	engineConfig   string
	engineStore    string
	engineDBPath   string
	engineRegistry string
	engineVerbose  bool
)

func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&engineConfig, "config", "", "Engine configuration YAML file")
	cmd.Flags().StringVar(&engineStore, "store", "sqlite", "Record store backend (memory|sqlite)")
	cmd.Flags().StringVar(&engineDBPath, "db", ".data/aiengine.db", "SQLite database path")
	cmd.Flags().StringVar(&engineRegistry, "registry", "", "Domain registry YAML file (built-in registry when empty)")
	cmd.Flags().BoolVarP(&engineVerbose, "verbose", "v", false, "Verbose logging")
}

// newEngine builds an engine from the shared flags. CLI invocations are
// separate processes, so anything that must survive between them (stored
// explanations, adaptation state) needs the SQLite backend.
func newEngine() (*aiengine.Engine, error) {
	config, err := loadEngineConfig()
	if err != nil {
		return nil, err
	}
	return aiengine.New(config)
}

func loadEngineConfig() (aiengine.Config, error) {
	if engineConfig != "" {
		config, err := aiengine.LoadConfig(engineConfig)
		if err != nil {
			return config, err
		}
		return withLogger(config)
	}

	config := aiengine.DefaultConfig()
	config.RegistryPath = engineRegistry

	switch engineStore {
	case "memory":
		config.Store = aiengine.StoreMemory
	case "sqlite":
		config.Store = aiengine.StoreSQLite
		config.SQLitePath = engineDBPath
	default:
		return config, fmt.Errorf("unknown store backend: %s (memory|sqlite)", engineStore)
	}

	return withLogger(config)
}

func withLogger(config aiengine.Config) (aiengine.Config, error) {
	if !engineVerbose {
		return config, nil
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return config, err
	}
	config.Logger = logger
	return config, nil
}
