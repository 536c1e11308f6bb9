package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openmuni/cashsync/db"
	"github.com/openmuni/cashsync/pkg/bus"
	"github.com/openmuni/cashsync/pkg/config"
	"github.com/openmuni/cashsync/pkg/models"
	"github.com/openmuni/cashsync/pkg/services"
)

var (
	configPath string
	dbPath     string
	setupName  string
	rootCmd    *cobra.Command
)

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd = &cobra.Command{
		Use:   "cashsync",
		Short: "A CLI tool for mirroring accounting data against CashCtrl",
		Long:  `A CLI tool that keeps a local SQLite mirror of a CashCtrl organization in sync, both ways.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.InitGlobalConfig(configPath); err != nil {
				// GetConfig creates a skeleton later when the file is missing
				if !os.IsNotExist(err) {
					return err
				}
				log.Warn().Str("path", configPath).Msg("Config file not found, a default will be created")
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath, "Path to the YAML configuration")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the SQLite database (overrides config)")
	rootCmd.PersistentFlags().StringVar(&setupName, "setup", "", "Name of the configured setup to use")

	rootCmd.AddCommand(newPullCmd(), newPushCmd(), newWatchCmd(), newStatusCmd(), newConfigCmd())

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// cliState bundles everything a command needs to drive the engine.
type cliState struct {
	store   *db.DB
	setup   *models.APISetup
	session *services.Session
	bus     *bus.Bus
}

func (s *cliState) close() {
	if s.bus != nil {
		_ = s.bus.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}
}

// initState opens the store, resolves the setup and builds the session.
// withBus additionally wires the change bus into the store so local
// writes become dispatchable events.
func initState(withBus bool) (*cliState, error) {
	setup, err := config.GetSetup(setupName)
	if err != nil {
		return nil, err
	}

	path := dbPath
	if path == "" {
		path, err = config.GetDBPath()
		if err != nil {
			return nil, err
		}
	}

	store, err := db.New(path)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	if err := store.Initialize(); err != nil {
		store.Close()
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	state := &cliState{store: store, setup: setup}
	if withBus {
		state.bus = bus.New()
		store.SetNotifier(state.bus)
	}

	state.session, err = services.NewSession(setup, store)
	if err != nil {
		state.close()
		return nil, err
	}
	return state, nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the current configuration",
		Long:  `Show the loaded configuration with credentials masked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.GetConfig()
			if err != nil {
				return err
			}
			path, _ := config.GetDBPath()
			fmt.Printf("Database: %s\n", path)
			for _, name := range cfg.SetupNames() {
				opts := cfg.Setups[name]
				fmt.Printf("Setup %q:\n", name)
				fmt.Printf("  Org:      %s\n", opts.Org)
				fmt.Printf("  API key:  %s\n", maskKey(opts.APIKey))
				fmt.Printf("  Language: %s\n", opts.DefaultLanguage)
				if opts.EncodeNumbersInHeadings {
					fmt.Println("  Headings: numbers encoded")
				}
			}
			return nil
		},
	}
}

func maskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
