package config

import (
	"crypto/subtle"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/dalnet/chanops/internal/chanserv"
)

// Config holds all bot configuration
type Config struct {
	Nick       string `yaml:"nick" toml:"nick" validate:"required"`
	NickPass   string `yaml:"nick_pass" toml:"nick_pass"`
	Alternate  string `yaml:"alternate" toml:"alternate"`
	Server     string `yaml:"server" toml:"server" validate:"required"`
	Port       int    `yaml:"port" toml:"port" validate:"min=1,max=65535"`
	TLS        bool   `yaml:"tls" toml:"tls"`
	ServerPass string `yaml:"server_pass" toml:"server_pass"`
	SASLLogin  string `yaml:"sasl_login" toml:"sasl_login"`
	SASLPass   string `yaml:"sasl_pass" toml:"sasl_pass"`
	IRCName    string `yaml:"irc_name" toml:"irc_name"`
	Username   string `yaml:"username" toml:"username"`
	AdminPass  string `yaml:"admin_pass" toml:"admin_pass"` // plain or bcrypt hash
	DataDir    string `yaml:"data_dir" toml:"data_dir"`

	// Moderation
	Network      string                `yaml:"network" toml:"network"`
	Channels     []string              `yaml:"channels" toml:"channels"`
	KickMessage  string                `yaml:"kick_message" toml:"kick_message"`
	AkickMessage string                `yaml:"akick_message" toml:"akick_message"`
	Capabilities chanserv.Capabilities `yaml:"capabilities" toml:"capabilities"`
	Services     chanserv.Services     `yaml:"services" toml:"services"`

	// host:port for the Prometheus listener, empty to disable
	MetricsListen string `yaml:"metrics_listen" toml:"metrics_listen" validate:"omitempty,hostname_port"`
}

// Secrets that may come from the environment instead of the file
const (
	EnvNickPass   = "CHANOPS_NICK_PASS"
	EnvAdminPass  = "CHANOPS_ADMIN_PASS"
	EnvServerPass = "CHANOPS_SERVER_PASS"
	EnvSASLPass   = "CHANOPS_SASL_PASS"
)

// Load reads a YAML or TOML configuration file, picked by extension
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config file")
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config file")
		}
	}

	cfg.applyEnv()
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyEnv() {
	overrides := map[string]*string{
		EnvNickPass:   &cfg.NickPass,
		EnvAdminPass:  &cfg.AdminPass,
		EnvServerPass: &cfg.ServerPass,
		EnvSASLPass:   &cfg.SASLPass,
	}
	for env, field := range overrides {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}
}

func (cfg *Config) setDefaults() {
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.Port == 0 {
		cfg.Port = 6667
		if cfg.TLS {
			cfg.Port = 6697
		}
	}
	if cfg.Username == "" {
		cfg.Username = cfg.Nick
	}
	if cfg.IRCName == "" {
		cfg.IRCName = "chanops"
	}
	if cfg.Alternate == "" && cfg.Nick != "" {
		cfg.Alternate = cfg.Nick + "_"
	}
	if cfg.Network == "" {
		cfg.Network = cfg.Server
	}
	if cfg.KickMessage == "" {
		cfg.KickMessage = "Goodbye"
	}
	if cfg.AkickMessage == "" {
		cfg.AkickMessage = cfg.KickMessage
	}
	if cfg.Services.ChanServ == "" {
		cfg.Services.ChanServ = "ChanServ"
	}
	if cfg.Services.NickServ == "" {
		cfg.Services.NickServ = "NickServ"
	}
}

func (cfg *Config) validate() error {
	if err := validator.New().Struct(cfg); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	for _, ch := range cfg.Channels {
		if !chanserv.IsValidChannel(ch) {
			return errors.Errorf("config: invalid channel %q", ch)
		}
	}
	return nil
}

// CheckAdminPass reports whether attempt is the admin password. A
// configured value starting with "$2" is taken as a bcrypt hash.
func (cfg *Config) CheckAdminPass(attempt string) bool {
	if cfg.AdminPass == "" {
		return false
	}
	if strings.HasPrefix(cfg.AdminPass, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(cfg.AdminPass), []byte(attempt)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(cfg.AdminPass), []byte(attempt)) == 1
}
