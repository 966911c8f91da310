package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/CIDgravity/snakelet"
)

// config structure
type Config struct {
	API     APIConfig     `mapstructure:"API"`
	Tasks   TasksConfig   `mapstructure:"TASKS"`
	Logs    LogsConfig    `mapstructure:"LOGS"`
	Github  GithubConfig  `mapstructure:"GITHUB"`
	Reports ReportsConfig `mapstructure:"REPORTS"`
}

type APIConfig struct {
	ListenPort     string   `mapstructure:"ListenPort"`
	AllowedOrigins []string `mapstructure:"AllowedOrigins"`
}

type TasksConfig struct {
	MaxParallelTasksAllowed int `mapstructure:"MaxParallelTasksAllowed"`
}

type LogsConfig struct {
	Level            string `mapstructure:"Level"` // error | warn | info | debug - case insensitive
	OutputLogsAsJSON bool   `mapstructure:"OutputLogsAsJSON"`
}

type GithubConfig struct {
	Token     string `mapstructure:"Token"`
	TokenFile string `mapstructure:"TokenFile"` // takes precedence over Token when set

	RequestTimeoutSeconds int `mapstructure:"RequestTimeoutSeconds"`
	MaxRetries            int `mapstructure:"MaxRetries"` // retries for transient (5xx / transport) errors only

	// sleep budget for secondary rate limits, handled by the transport
	MaxRateLimitSleepSeconds int `mapstructure:"MaxRateLimitSleepSeconds"`

	// fetch commits, pull requests and workflows counts for each repository
	// this costs three extra requests per repository
	FetchActivity bool `mapstructure:"FetchActivity"`

	MaxParallelRequests int `mapstructure:"MaxParallelRequests"`
}

type ReportsConfig struct {
	UploadsDir string `mapstructure:"UploadsDir"`
	URLPrefix  string `mapstructure:"URLPrefix"`
	BrandName  string `mapstructure:"BrandName"`
}

// Load will search the config file next to the binary, then in the working directory
func Load() (*Config, error) {
	dir, err := filepath.Abs(filepath.Dir(os.Args[0]))

	if err != nil {
		return nil, err
	}

	// check config file exists
	configFilePath := dir + "/config/config.toml"

	if _, err := os.Stat(configFilePath); errors.Is(err, os.ErrNotExist) {
		if _, err := os.Stat("config/config.toml"); errors.Is(err, os.ErrNotExist) {
			return nil, err
		} else {
			configFilePath = "config/config.toml"
		}
	}

	return LoadFrom(configFilePath)
}

// LoadFrom load default values, then the given file content on top of them
func LoadFrom(configFilePath string) (*Config, error) {
	cfg := GetDefault()
	_, err := snakelet.InitAndLoad(cfg, configFilePath)

	if err != nil {
		return nil, err
	}

	if err := cfg.Github.resolveToken(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// GetDefault
func GetDefault() *Config {
	return &Config{
		API: APIConfig{
			ListenPort:     "5001",
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Tasks: TasksConfig{
			MaxParallelTasksAllowed: 8,
		},
		Logs: LogsConfig{
			Level:            "debug",
			OutputLogsAsJSON: false,
		},
		Github: GithubConfig{
			RequestTimeoutSeconds:    30,
			MaxRetries:               2,
			MaxRateLimitSleepSeconds: 60,
			FetchActivity:            false,
			MaxParallelRequests:      0, // fallback to Tasks.MaxParallelTasksAllowed
		},
		Reports: ReportsConfig{
			UploadsDir: "Uploads",
			URLPrefix:  "/Uploads",
			BrandName:  "OrgDash Enterprise",
		},
	}
}

// resolveToken will load the token once at startup
// priority: token file, then inline token, then GITHUB_TOKEN environment variable
func (g *GithubConfig) resolveToken() error {
	if file := strings.TrimSpace(g.TokenFile); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading github token from file %q: %w", file, err)
		}

		g.Token = string(data)
	}

	if strings.TrimSpace(g.Token) == "" {
		g.Token = os.Getenv("GITHUB_TOKEN")
	}

	g.Token = strings.TrimSpace(g.Token)
	return nil
}

// ParallelRequests returns the number of concurrent requests allowed against github
func (c Config) ParallelRequests() int {
	if c.Github.MaxParallelRequests > 0 {
		return c.Github.MaxParallelRequests
	}

	if c.Tasks.MaxParallelTasksAllowed > 0 {
		return c.Tasks.MaxParallelTasksAllowed
	}

	return 1
}
