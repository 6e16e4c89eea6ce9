package domain

import "time"

// Config represents the application configuration. It is loaded once at
// startup and passed to the orchestrator as an immutable snapshot.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Output   OutputConfig   `mapstructure:"output"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Rate     RateConfig     `mapstructure:"rate"`
	Download DownloadConfig `mapstructure:"download"`
	Robots   RobotsConfig   `mapstructure:"robots"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig contains the API server bind address.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// OutputConfig contains where downloaded resources land.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// HTTPConfig contains settings for the outbound HTTP client.
type HTTPConfig struct {
	Proxy      string        `mapstructure:"proxy"`
	Timeout    time.Duration `mapstructure:"timeout"`
	UserAgents []string      `mapstructure:"user_agents"`
}

// RateConfig bounds the randomized inter-request delay.
type RateConfig struct {
	MinDelay time.Duration `mapstructure:"min_delay"`
	MaxDelay time.Duration `mapstructure:"max_delay"`
}

// DownloadConfig contains transfer and concurrency settings.
type DownloadConfig struct {
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	ChunkSize    int           `mapstructure:"chunk_size"`
	Concurrent   bool          `mapstructure:"concurrent"`
	MinWorkers   int           `mapstructure:"min_workers"`
	MaxWorkers   int           `mapstructure:"max_workers"`
	// AdjustEvery is how many finished transfers pass between worker-count
	// adjustment cycles.
	AdjustEvery int `mapstructure:"adjust_every"`
}

// RobotsConfig controls the robots.txt check performed per album URL.
type RobotsConfig struct {
	Respect bool `mapstructure:"respect"`
}

// QueueConfig contains settings for the server-mode album queue.
type QueueConfig struct {
	DatabasePath  string        `mapstructure:"database_path"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
}

// LoggingConfig contains logging-related configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Output: OutputConfig{
			Dir: "downloads",
		},
		HTTP: HTTPConfig{
			Timeout: 30 * time.Second,
		},
		Rate: RateConfig{
			MinDelay: 1 * time.Second,
			MaxDelay: 3 * time.Second,
		},
		Download: DownloadConfig{
			MaxRetries:   3,
			RetryBackoff: 2 * time.Second,
			ChunkSize:    8 * 1024,
			Concurrent:   false,
			MinWorkers:   1,
			MaxWorkers:   3,
			AdjustEvery:  5,
		},
		Robots: RobotsConfig{
			Respect: true,
		},
		Queue: QueueConfig{
			DatabasePath:  "$HOME/.albumgrab/queue.db",
			CheckInterval: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
