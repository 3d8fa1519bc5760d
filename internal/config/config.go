package config

import (
	"time"

	"github.com/pkg/errors"

	"github.com/pipeforge/pipeforge/pkg/conf"
)

type Config struct {
	Job struct {
		Name    string
		LogsURL string
	}

	App struct {
		ServiceName  string
		Command      []string
		WorkDir      string
		URL          string
		HealthPath   string
		StartupDelay time.Duration
	}

	Build struct {
		Command     []string
		TestCommand []string
		ReportGlobs []string
		ArchivePath string
	}

	Quality struct {
		Command    []string
		ProjectKey string
	}

	Image struct {
		Engine     string
		Dockerfile string
		ContextDir string
		Repository string
		FixedTag   string
	}

	Deploy struct {
		Kubectl      string
		Manifests    []string
		Namespace    string
		Timeout      time.Duration
		PollInterval time.Duration
		MaxAttempts  int
		LogTail      int
	}

	Notify struct {
		Email struct {
			Enabled bool
			Host    string
			Port    int
			From    string
			To      []string
		}
		Telegram struct {
			Enabled  bool
			BotToken string
			ChatID   int64
		}
	}

	Stages struct {
		Test struct {
			Policy string
		}
	}

	State struct {
		Dir string
	}
}

func ParseConfig(path string) (*Config, error) {
	config := &Config{}
	if err := conf.ParseConfig(config, conf.EnvPrefix("PF"), conf.File(path)); err != nil {
		return nil, errors.Wrap(err, "Failed to parse config")
	}
	config.fillDefaults()
	return config, nil
}

func (c *Config) fillDefaults() {
	if c.App.HealthPath == "" {
		c.App.HealthPath = "/actuator/health"
	}
	if c.App.StartupDelay == 0 {
		c.App.StartupDelay = 30 * time.Second
	}
	if c.Image.Engine == "" {
		c.Image.Engine = "docker"
	}
	if c.Image.FixedTag == "" {
		c.Image.FixedTag = "latest"
	}
	if c.Deploy.Kubectl == "" {
		c.Deploy.Kubectl = "kubectl"
	}
	if c.Deploy.Timeout == 0 {
		c.Deploy.Timeout = 5 * time.Minute
	}
	if c.Deploy.PollInterval == 0 {
		c.Deploy.PollInterval = 10 * time.Second
	}
	if c.Deploy.MaxAttempts == 0 {
		c.Deploy.MaxAttempts = 10
	}
	if c.Deploy.LogTail == 0 {
		c.Deploy.LogTail = 100
	}
	if c.Stages.Test.Policy == "" {
		c.Stages.Test.Policy = "tolerated"
	}
	if c.State.Dir == "" {
		c.State.Dir = ".pipeforge"
	}
}
