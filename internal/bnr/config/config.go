package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/HtoHe/dotfiles/internal/utils"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort          = 8022
	DefaultLogPath       = "./bnr.log"
	DefaultRemoteLogPath = "bnr.log"
	DefaultRsyncPath     = "rsync"
	DefaultSSHCommand    = "ssh"
	DefaultIgnoreFile    = "~/.bnrignore"
)

var (
	home, _            = os.UserHomeDir()
	DefaultConfigPath  = filepath.Join(home, ".config", "bnr", "config.yaml")
	DefaultJournalPath = filepath.Join(home, ".local", "share", "bnr", "history.db")
	DefaultDebugLog    = filepath.Join(home, ".local", "state", "bnr", "debug.log")
)

var (
	ErrNoPairs     = errors.New("at least one directory pair is required")
	ErrInvalidPort = errors.New("port must be between 1 and 65535")
)

// DirPair associates a local directory with its counterpart under the remote
// account's home directory.
type DirPair struct {
	Name   string `mapstructure:"name" yaml:"name"`
	Local  string `mapstructure:"local" yaml:"local"`
	Remote string `mapstructure:"remote" yaml:"remote"`
}

// LocalArg is the local side as rsync expects it: the directory's contents.
func (p DirPair) LocalArg() string {
	return utils.WithTrailingSlash(p.Local)
}

// RemoteArg is the remote side, relative to the remote home directory.
func (p DirPair) RemoteArg(host string) string {
	return host + ":" + utils.WithTrailingSlash(p.Remote)
}

type Config struct {
	Pairs         []DirPair `mapstructure:"pairs" yaml:"pairs"`
	LogPath       string    `mapstructure:"log_path" yaml:"log_path"`
	RemoteLogPath string    `mapstructure:"remote_log_path" yaml:"remote_log_path"`
	Port          int       `mapstructure:"port" yaml:"port"`
	RsyncPath     string    `mapstructure:"rsync_path" yaml:"rsync_path"`
	SSHCommand    string    `mapstructure:"ssh_command" yaml:"ssh_command"`
	IgnoreFile    string    `mapstructure:"ignore_file" yaml:"ignore_file"`
	JournalPath   string    `mapstructure:"journal_path" yaml:"journal_path"`
	ScratchDir    string    `mapstructure:"scratch_dir" yaml:"scratch_dir,omitempty"`
	Path          string    `mapstructure:"-" yaml:"-"`
}

// DefaultPairs are the two directories backed up out of the box.
func DefaultPairs() []DirPair {
	return []DirPair{
		{Name: "documents", Local: "~/documents/", Remote: "backup/documents/"},
		{Name: "projects", Local: "~/projects/", Remote: "backup/projects/"},
	}
}

func Default() *Config {
	return &Config{
		Pairs:         DefaultPairs(),
		LogPath:       DefaultLogPath,
		RemoteLogPath: DefaultRemoteLogPath,
		Port:          DefaultPort,
		RsyncPath:     DefaultRsyncPath,
		SSHCommand:    DefaultSSHCommand,
		IgnoreFile:    DefaultIgnoreFile,
		JournalPath:   DefaultJournalPath,
	}
}

func (c *Config) Validate() error {
	if len(c.Pairs) == 0 {
		return ErrNoPairs
	}

	seen := make(map[string]struct{}, len(c.Pairs))
	for i, p := range c.Pairs {
		if p.Name == "" {
			return fmt.Errorf("pair %d: name is required", i)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("pair %d: duplicate name %q", i, p.Name)
		}
		seen[p.Name] = struct{}{}

		if p.Local == "" || p.Remote == "" {
			return fmt.Errorf("pair %q: local and remote paths are required", p.Name)
		}
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	if c.LogPath == "" || c.RemoteLogPath == "" {
		return errors.New("log_path and remote_log_path are required")
	}
	if c.RsyncPath == "" || c.SSHCommand == "" {
		return errors.New("rsync_path and ssh_command are required")
	}
	return nil
}

// Resolve expands `~` in every local path and makes them absolute. Remote
// paths are left alone, they are relative to the remote home by contract.
func (c *Config) Resolve() error {
	for i := range c.Pairs {
		local, err := utils.ResolvePath(c.Pairs[i].Local)
		if err != nil {
			return fmt.Errorf("pair %q: %w", c.Pairs[i].Name, err)
		}
		c.Pairs[i].Local = local
	}

	logPath, err := utils.ResolvePath(c.LogPath)
	if err != nil {
		return fmt.Errorf("log_path: %w", err)
	}
	c.LogPath = logPath

	for _, p := range []*string{&c.IgnoreFile, &c.JournalPath, &c.ScratchDir} {
		if *p == "" {
			continue
		}
		resolved, err := utils.ResolvePath(*p)
		if err != nil {
			return err
		}
		*p = resolved
	}
	return nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
