package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend selects the document-store client implementation.
const (
	BackendRedis   = "redis"
	BackendGateway = "gateway"
	BackendMemory  = "memory"
)

type Config struct {
	Env string `yaml:"env"`

	// Backend: redis | gateway | memory
	Backend string `yaml:"backend"`

	Redis struct {
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		Database int           `yaml:"database"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"redis"`

	Gateway struct {
		URL          string        `yaml:"url"` // ws://host:port/docs
		OpTimeout    time.Duration `yaml:"op_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		QueueSize    int           `yaml:"queue_size"`
	} `yaml:"gateway"`

	Prefs struct {
		Path string `yaml:"path"`
	} `yaml:"prefs"`

	Metrics struct {
		Addr string `yaml:"addr"` // empty disables the listener
	} `yaml:"metrics"`
}

// Load supports comma-separated config files: "-c common.yml,chatapp.yml"
func Load(pathList string) (*Config, error) {
	if strings.TrimSpace(pathList) == "" {
		return nil, errors.New("config path required (e.g. -c ./config.yml)")
	}
	var c Config
	for _, p := range strings.Split(pathList, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		b, err := os.ReadFile(p)
		if errors.Is(err, os.ErrNotExist) {
			// Missing files fall through to defaults so the binary
			// runs without a config (memory backend).
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	switch c.Backend {
	case BackendRedis, BackendGateway, BackendMemory:
	default:
		return nil, fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Redis.Timeout == 0 {
		c.Redis.Timeout = 5 * time.Second
	}
	if c.Backend == BackendGateway && c.Gateway.URL == "" {
		return nil, errors.New("gateway backend requires gateway.url")
	}
	if c.Gateway.OpTimeout == 0 {
		c.Gateway.OpTimeout = 10 * time.Second
	}
	if c.Gateway.WriteTimeout == 0 {
		c.Gateway.WriteTimeout = 5 * time.Second
	}
	if c.Gateway.QueueSize <= 0 {
		c.Gateway.QueueSize = 256
	}
	if c.Prefs.Path == "" {
		c.Prefs.Path = "./chatapp-prefs.yml"
	}
	return &c, nil
}
