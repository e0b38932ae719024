package config

import (
	"io/ioutil"
	"net"
	"strconv"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/raniellyferreira/redistmpl"
	"github.com/raniellyferreira/redistmpl/reply"
	"github.com/raniellyferreira/redistmpl/template"
	"github.com/raniellyferreira/redistmpl/transport"
)

// EnvPrefix prefixes every environment override, e.g. REDISTMPL_PORT
const EnvPrefix = "REDISTMPL"

// Config is the file and environment configuration of a session
type Config struct {
	Host     string `json:"host" envconfig:"HOST"`
	Port     int    `json:"port" envconfig:"PORT"`
	Resource string `json:"resource" envconfig:"RESOURCE"`

	Transport        string `json:"transport" envconfig:"TRANSPORT"`
	Dialect          string `json:"dialect" envconfig:"DIALECT"`
	OnError          string `json:"on_error" envconfig:"ON_ERROR"`
	NilPolicy        string `json:"nil_policy" envconfig:"NIL_POLICY"`
	MaxSubstitutions int    `json:"max_substitutions" envconfig:"MAX_SUBSTITUTIONS"`

	LogLevel string `json:"log_level" envconfig:"LOG_LEVEL"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Port:      6379,
		Transport: transport.NameRadix,
		Dialect:   template.Token.String(),
		OnError:   redistmpl.PolicyRecover.String(),
		NilPolicy: reply.NilMarker.String(),
		LogLevel:  logrus.InfoLevel.String(),
	}
}

// Load reads the YAML file at path over the defaults and then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		b, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config")
		}
		data = b
	}
	return Parse(data)
}

// Parse is Load for an in-memory document
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "parse config")
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, errors.Wrap(err, "environment overrides")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every enumerated setting
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.Errorf("invalid port %d", c.Port)
	}
	if c.MaxSubstitutions < 0 {
		return errors.Errorf("invalid max_substitutions %d", c.MaxSubstitutions)
	}
	if _, err := transport.ByName(c.Transport); err != nil {
		return errors.Wrap(err, "transport")
	}
	if _, err := template.ParseDialect(c.Dialect); err != nil {
		return errors.Wrap(err, "dialect")
	}
	if _, err := redistmpl.ParseErrorPolicy(c.OnError); err != nil {
		return errors.Wrap(err, "on_error")
	}
	if _, err := reply.ParseNilPolicy(c.NilPolicy); err != nil {
		return errors.Wrap(err, "nil_policy")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Address returns host:port, or "" when no host is configured
func (c *Config) Address() string {
	if strings.TrimSpace(c.Host) == "" {
		return ""
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Level parses log_level. An empty level is info.
func (c *Config) Level() (logrus.Level, error) {
	if c.LogLevel == "" {
		return logrus.InfoLevel, nil
	}
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel, errors.Wrap(err, "log_level")
	}
	return lvl, nil
}

// Logger returns a logrus logger at the configured level
func (c *Config) Logger() (*logrus.Logger, error) {
	lvl, err := c.Level()
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.SetLevel(lvl)
	return l, nil
}

// Policy returns the configured error policy
func (c *Config) Policy() (redistmpl.ErrorPolicy, error) {
	p, err := redistmpl.ParseErrorPolicy(c.OnError)
	return p, errors.Wrap(err, "on_error")
}

// Options maps the configuration to session options. The logger is built
// from log_level.
func (c *Config) Options() ([]redistmpl.Option, error) {
	dialer, err := transport.ByName(c.Transport)
	if err != nil {
		return nil, errors.Wrap(err, "transport")
	}
	dialect, err := template.ParseDialect(c.Dialect)
	if err != nil {
		return nil, errors.Wrap(err, "dialect")
	}
	policy, err := c.Policy()
	if err != nil {
		return nil, err
	}
	nilPolicy, err := reply.ParseNilPolicy(c.NilPolicy)
	if err != nil {
		return nil, errors.Wrap(err, "nil_policy")
	}
	logger, err := c.Logger()
	if err != nil {
		return nil, err
	}

	opts := []redistmpl.Option{
		redistmpl.WithDialer(dialer),
		redistmpl.WithDialect(dialect),
		redistmpl.WithErrorPolicy(policy),
		redistmpl.WithNilPolicy(nilPolicy),
		redistmpl.WithMaxSubstitutions(c.MaxSubstitutions),
		redistmpl.WithLogger(redistmpl.NewLogrusLogger(logger)),
	}
	if c.Resource != "" {
		opts = append(opts, redistmpl.WithResource(c.Resource))
	}
	return opts, nil
}
