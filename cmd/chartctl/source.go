package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"chartbuilder-go/internal/service"
)

// SourcesConfig holds the named upstream connections the CLI can fetch from.
type SourcesConfig struct {
	Sources map[string]service.SourceConfig `toml:"sources"`
}

func sourcesConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".config", "chartctl")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "sources.toml"), nil
}

func loadSourcesConfig() (SourcesConfig, error) {
	path, err := sourcesConfigPath()
	if err != nil {
		return SourcesConfig{}, err
	}
	var cfg SourcesConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return SourcesConfig{Sources: map[string]service.SourceConfig{}}, nil
		}
		return SourcesConfig{}, err
	}
	if cfg.Sources == nil {
		cfg.Sources = map[string]service.SourceConfig{}
	}
	return cfg, nil
}

func saveSourcesConfig(cfg SourcesConfig) error {
	path, err := sourcesConfigPath()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// openNamedSource connects to a source profile from sources.toml.
func openNamedSource(name string) (service.Source, error) {
	cfg, err := loadSourcesConfig()
	if err != nil {
		return nil, err
	}
	sc, ok := cfg.Sources[name]
	if !ok {
		return nil, fmt.Errorf("source %q not found; add it with 'chartctl source add'", name)
	}
	return service.NewSource(sc)
}

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Manage named data source profiles",
}

var sourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSourcesConfig()
		if err != nil {
			return err
		}
		names := make([]string, 0, len(cfg.Sources))
		for name := range cfg.Sources {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("%s\t%s\n", name, cfg.Sources[name].Type)
		}
		return nil
	},
}

var sourceAddFlags service.SourceConfig

var sourceAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or replace a source profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSourcesConfig()
		if err != nil {
			return err
		}
		cfg.Sources[args[0]] = sourceAddFlags
		return saveSourcesConfig(cfg)
	},
}

var sourceRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a source profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSourcesConfig()
		if err != nil {
			return err
		}
		delete(cfg.Sources, args[0])
		return saveSourcesConfig(cfg)
	},
}

func init() {
	sourceAddCmd.Flags().StringVar(&sourceAddFlags.Type, "type", "postgres", "source type: postgres, http, file")
	sourceAddCmd.Flags().StringVar(&sourceAddFlags.Host, "host", "localhost", "database host")
	sourceAddCmd.Flags().IntVar(&sourceAddFlags.Port, "port", 5432, "database port")
	sourceAddCmd.Flags().StringVar(&sourceAddFlags.User, "user", "", "database user")
	sourceAddCmd.Flags().StringVar(&sourceAddFlags.Password, "password", "", "database password")
	sourceAddCmd.Flags().StringVar(&sourceAddFlags.DBName, "dbname", "", "database name")
	sourceAddCmd.Flags().StringVar(&sourceAddFlags.SSLMode, "sslmode", "disable", "sslmode: disable or require")
	sourceAddCmd.Flags().StringVar(&sourceAddFlags.Query, "query", "", "query to run on fetch")
	sourceAddCmd.Flags().StringVar(&sourceAddFlags.URL, "url", "", "endpoint URL for http sources")
	sourceAddCmd.Flags().StringVar(&sourceAddFlags.Path, "path", "", "file path for file sources")

	sourceCmd.AddCommand(sourceListCmd)
	sourceCmd.AddCommand(sourceAddCmd)
	sourceCmd.AddCommand(sourceRemoveCmd)
}
