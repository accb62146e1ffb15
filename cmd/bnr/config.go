package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/HtoHe/dotfiles/internal/bnr/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "BNR"

// loadConfig layers the config file, a .env in the working directory and
// BNR_* variables over the defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	v := viper.New()
	def := config.Default()
	v.SetDefault("pairs", def.Pairs)
	v.SetDefault("log_path", def.LogPath)
	v.SetDefault("remote_log_path", def.RemoteLogPath)
	v.SetDefault("port", def.Port)
	v.SetDefault("rsync_path", def.RsyncPath)
	v.SetDefault("ssh_command", def.SSHCommand)
	v.SetDefault("ignore_file", def.IgnoreFile)
	v.SetDefault("journal_path", def.JournalPath)
	v.SetDefault("scratch_dir", def.ScratchDir)

	configPath, _ := cmd.Flags().GetString("config")
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !enoent && !notFound {
			return nil, fmt.Errorf("config read '%s': %w", configPath, err)
		}
		slog.Debug("no config file, using defaults", "path", configPath)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &config.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	if v.ConfigFileUsed() != "" && fileReadable(v.ConfigFileUsed()) {
		cfg.Path = v.ConfigFileUsed()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fileReadable(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
