// Package config loads jarforge.yaml and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/izavyalov-dev/jarforge/engine"
)

const DefaultFile = "jarforge.yaml"

type Config struct {
	Engine        EngineConfig `yaml:"engine"`
	Image         ImageConfig  `yaml:"image"`
	AppRoot       string       `yaml:"appRoot"`
	OutputRoot    string       `yaml:"outputRoot"`
	DevMode       bool         `yaml:"devMode"`
	LogTailLines  int          `yaml:"logTailLines"`
	LogLevel      string       `yaml:"logLevel"`
	MetricsListen string       `yaml:"metricsListen"`
	DatabaseURL   string       `yaml:"databaseURL"`
	S3            S3Config     `yaml:"s3"`
	Groups        []Group      `yaml:"groups"`
}

type EngineConfig struct {
	Socket    string `yaml:"socket"`
	APIPrefix string `yaml:"apiPrefix"`
}

// ImageConfig names the builder image. With an empty Pull the image is built
// from Containerfile; otherwise it is pulled with that policy.
type ImageConfig struct {
	Tag           string `yaml:"tag"`
	Containerfile string `yaml:"containerfile"`
	Pull          string `yaml:"pull"`
}

type S3Config struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`
}

// Group is a set of kinds of which at most Parallel build at once.
type Group struct {
	Name     string `yaml:"name"`
	Parallel int    `yaml:"parallel"`
	Kinds    []Kind `yaml:"kinds"`
}

// Kind configures the worker pool of one artifact kind.
type Kind struct {
	Name         string `yaml:"name"`
	Concurrency  int    `yaml:"concurrency"`
	ReadOnlyRoot bool   `yaml:"readOnlyRoot"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			Socket:    defaultSocket(),
			APIPrefix: engine.DefaultAPIPrefix,
		},
		Image: ImageConfig{
			Tag:           "localhost/jarforge-builder:latest",
			Containerfile: "Containerfile",
		},
		AppRoot:      ".",
		OutputRoot:   "output",
		LogTailLines: 250,
		LogLevel:     "info",
		Groups: []Group{
			{
				Name:     "papermc",
				Parallel: 2,
				Kinds: []Kind{
					{Name: "paper", Concurrency: 2, ReadOnlyRoot: true},
					{Name: "folia", Concurrency: 1, ReadOnlyRoot: true},
					{Name: "velocity", Concurrency: 1, ReadOnlyRoot: true},
					{Name: "waterfall", Concurrency: 1, ReadOnlyRoot: true},
				},
			},
			{
				Name:     "mojang",
				Parallel: 1,
				Kinds: []Kind{
					{Name: "vanilla", Concurrency: 2, ReadOnlyRoot: true},
				},
			},
		},
	}
}

func defaultSocket() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "podman", "podman.sock")
	}
	return "/run/podman/podman.sock"
}

// Load reads path over the defaults. A missing file is not an error when
// path is the default name.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultFile {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv("JARFORGE_SOCKET"); v != "" {
		c.Engine.Socket = v
	}
	if v := getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := getenv("JARFORGE_DEV"); v != "" {
		c.DevMode = v == "1" || strings.EqualFold(v, "true")
	}
	if v := getenv("JARFORGE_S3_BUCKET"); v != "" {
		c.S3.Bucket = v
	}
}

func (c Config) Validate() error {
	if c.Engine.Socket == "" {
		return errors.New("engine.socket is required")
	}
	if c.Image.Tag == "" {
		return errors.New("image.tag is required")
	}
	if c.Image.Pull == "" && c.Image.Containerfile == "" {
		return errors.New("image.containerfile is required unless image.pull is set")
	}
	if c.Image.Pull != "" && !engine.PullPolicy(c.Image.Pull).Valid() {
		return fmt.Errorf("image.pull: unsupported policy %q", c.Image.Pull)
	}
	if c.AppRoot == "" || c.OutputRoot == "" {
		return errors.New("appRoot and outputRoot are required")
	}
	if c.LogTailLines < 0 {
		return errors.New("logTailLines must not be negative")
	}

	seen := map[string]string{}
	for _, g := range c.Groups {
		if g.Name == "" {
			return errors.New("group name is required")
		}
		if g.Parallel < 1 {
			return fmt.Errorf("group %s: parallel must be at least 1", g.Name)
		}
		for _, k := range g.Kinds {
			if k.Name == "" {
				return fmt.Errorf("group %s: kind name is required", g.Name)
			}
			if k.Concurrency < 1 {
				return fmt.Errorf("kind %s: concurrency must be at least 1", k.Name)
			}
			if other, dup := seen[k.Name]; dup {
				return fmt.Errorf("kind %s listed in groups %s and %s", k.Name, other, g.Name)
			}
			seen[k.Name] = g.Name
		}
	}
	return nil
}

// KindNames lists every configured kind in group order.
func (c Config) KindNames() []string {
	var names []string
	for _, g := range c.Groups {
		for _, k := range g.Kinds {
			names = append(names, k.Name)
		}
	}
	return names
}

// OutputDir is the host directory holding artifacts of kind.
func (c Config) OutputDir(kind string) (string, error) {
	root, err := filepath.Abs(c.OutputRoot)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, kind), nil
}
