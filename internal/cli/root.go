// Package cli implements the samtale command tree.
package cli

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/erg0nix/samtale/internal/app"
	"github.com/erg0nix/samtale/internal/config"
)

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "samtale",
		Short:         "chat with your documents and videos",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to config file")

	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newSourcesCmd())
	rootCmd.AddCommand(newSayLastCmd())

	return rootCmd
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = filepath.Join(config.Default().DataDir, "config.toml")
	}
	return config.LoadOrCreate(configPath)
}

// newServices builds the wired conversation for one command invocation,
// restoring the previous session's state from disk.
func newServices(cmd *cobra.Command) (*app.Services, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	services := app.NewServices(cfg)
	services.Restore()

	return services, nil
}
