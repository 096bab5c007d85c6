package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"ggp-deploy/internal/pkg/ggp"
	"ggp-deploy/pkg/utils"
)

// EnvPrefix prefixes every environment override, e.g. GGP_DEPLOY_GGP_INSTANCE.
const EnvPrefix = "GGP_DEPLOY"

type Config struct {
	GGP     GGPConfig     `mapstructure:"ggp"`
	SSH     SSHConfig     `mapstructure:"ssh"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"log"`
}

type GGPConfig struct {
	Bin            string `mapstructure:"bin"`
	Instance       string `mapstructure:"instance"`
	AppPath        string `mapstructure:"app_path"`
	AssetsDir      string `mapstructure:"assets_dir"`
	BuildAssetsDir string `mapstructure:"build_assets_dir"`
}

// SSHConfig describes the optional build host that runs ggp on our behalf.
// An empty Host means ggp runs locally.
type SSHConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Username       string        `mapstructure:"username"`
	AuthType       string        `mapstructure:"auth_type"`
	Password       string        `mapstructure:"password"`
	PrivateKeyFile string        `mapstructure:"private_key_file"`
	Passphrase     string        `mapstructure:"passphrase"`
	KnownHostsFile string        `mapstructure:"known_hosts_file"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("ggp.bin", ggp.DefaultBin)
	v.SetDefault("ggp.instance", "")
	v.SetDefault("ggp.app_path", ggp.DefaultAppPath)
	v.SetDefault("ggp.assets_dir", "assets")
	v.SetDefault("ggp.build_assets_dir", "bazel-bin/assets")

	v.SetDefault("ssh.host", "")
	v.SetDefault("ssh.port", 22)
	v.SetDefault("ssh.username", "")
	v.SetDefault("ssh.auth_type", "key")
	v.SetDefault("ssh.password", "")
	v.SetDefault("ssh.private_key_file", "")
	v.SetDefault("ssh.passphrase", "")
	v.SetDefault("ssh.known_hosts_file", "")
	v.SetDefault("ssh.timeout", 30*time.Second)

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
}

// Load layers defaults, the config file, GGP_DEPLOY_* variables and any
// flags already bound to v. An empty path looks for ggp-deploy.yaml in the
// working directory and tolerates its absence.
func Load(v *viper.Viper, path string) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("ggp-deploy")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.GGP.Bin == "" {
		return errors.New("ggp.bin cannot be empty")
	}
	if err := utils.ValidateInstanceName(c.GGP.Instance); err != nil {
		return err
	}
	if err := utils.ValidateAppPath(c.GGP.AppPath); err != nil {
		return err
	}
	if c.SSH.Host != "" {
		if err := utils.ValidatePort(c.SSH.Port); err != nil {
			return err
		}
		if c.SSH.Username == "" {
			return errors.New("ssh.username is required when ssh.host is set")
		}
		switch c.SSH.AuthType {
		case "password":
		case "key":
			if c.SSH.PrivateKeyFile == "" {
				return errors.New("ssh.private_key_file is required for key auth")
			}
		default:
			return fmt.Errorf("unsupported ssh.auth_type %q", c.SSH.AuthType)
		}
	}
	if err := utils.ValidatePort(c.Server.Port); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unsupported log.format %q", c.Logging.Format)
	}
	return nil
}
