package config

import "flag"

// Flags are command line overrides applied on top of a loaded Config.
type Flags struct {
	Path    string
	Addr    string
	Backend string
	DataDir string
	Server  string
}

// Register binds the flags to fs.
func (f *Flags) Register(fs *flag.FlagSet) {
	fs.StringVar(&f.Path, "config", "", "path to yaml config")
	fs.StringVar(&f.Addr, "addr", "", "listen address, example: :8080")
	fs.StringVar(&f.Backend, "backend", "", "ledger backend: memory, wal, file or postgres")
	fs.StringVar(&f.DataDir, "data", "", "directory for wal and file backends")
	fs.StringVar(&f.Server, "server", "", "server URL used by client commands")
}

// Load reads the config at f.Path and applies the non-empty overrides.
func (f *Flags) Load() (*Config, error) {
	cfg, err := Load(f.Path)
	if err != nil {
		return nil, err
	}
	if f.Addr != "" {
		cfg.HTTP.Addr = f.Addr
	}
	if f.Backend != "" {
		cfg.Ledger.Backend = f.Backend
	}
	if f.DataDir != "" {
		cfg.Ledger.DataDir = f.DataDir
	}
	if f.Server != "" {
		cfg.HTTP.ServerURL = f.Server
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
