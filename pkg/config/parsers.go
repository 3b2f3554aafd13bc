package config

import (
	"flag"
	"os"
	"strconv"
)

// Flags holds parsed command-line values and which were set explicitly.
type Flags struct {
	Addr     string
	DB       string
	Config   string
	Validate bool
	Set      map[string]bool
}

// ParseFlags parses the command line. Only the operational knobs are
// flags; everything else lives in the config file.
func ParseFlags() Flags {
	addrPtr := flag.String("addr", ":9090", "ops HTTP listen address")
	dbPtr := flag.String("db", "./.chatshard", "pebble database path")
	cfgPtr := flag.String("config", "./config.yaml", "path to config file")
	validatePtr := flag.Bool("validate", false, "validate config and exit")
	flag.Parse()

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return Flags{Addr: *addrPtr, DB: *dbPtr, Config: *cfgPtr, Validate: *validatePtr, Set: set}
}

// Effective is the merged configuration with its provenance.
type Effective struct {
	Config *Config
	Addr   string
	DBPath string
	Source string // "flags", "file", or "env"
}

// LoadEffective merges file, environment and flags. Precedence is
// flags over env over file.
func LoadEffective(flags Flags) (Effective, error) {
	eff := Effective{Source: "flags"}

	cfgPath := ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, err := LoadFile(cfgPath)
	switch {
	case err == nil:
		eff.Source = "file"
	case os.IsNotExist(err) && !flags.Set["config"]:
		// no config file is fine when the default path was never overridden
		cfg = &Config{}
	default:
		return eff, err
	}
	eff.Config = cfg

	envAddr := applyEnv(cfg, &eff)

	switch {
	case flags.Set["addr"]:
		eff.Addr = flags.Addr
	case envAddr != "":
		eff.Addr = envAddr
	case cfg.Server.Address != "" || cfg.Server.Port != 0:
		eff.Addr = cfg.Addr()
	default:
		eff.Addr = flags.Addr
	}

	switch {
	case flags.Set["db"]:
		eff.DBPath = flags.DB
	case cfg.Store.Path != "":
		eff.DBPath = cfg.Store.Path
	default:
		eff.DBPath = flags.DB
	}
	cfg.Store.Path = eff.DBPath
	return eff, nil
}

// applyEnv folds CHATSHARD_* variables into cfg and returns the raw
// address override, if any.
func applyEnv(cfg *Config, eff *Effective) string {
	var addr string
	if v := os.Getenv("CHATSHARD_ADDR"); v != "" {
		addr = v
		eff.Source = "env"
	}
	if v := os.Getenv("CHATSHARD_DB_PATH"); v != "" {
		cfg.Store.Path = v
		eff.Source = "env"
	}
	if v := os.Getenv("CHATSHARD_GC_CRON"); v != "" {
		cfg.GC.Cron = v
		cfg.GC.Enabled = true
		eff.Source = "env"
	}
	if v := os.Getenv("CHATSHARD_GC_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.GC.Enabled = b
			eff.Source = "env"
		}
	}
	if v := os.Getenv("CHATSHARD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
		eff.Source = "env"
	}
	return addr
}
