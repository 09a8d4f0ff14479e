package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "5m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// QueueSettings bounds the worker manager.
type QueueSettings struct {
	Capacity    int      `yaml:"capacity"`
	TaskTimeout Duration `yaml:"task_timeout"`
}

// AnalysisSettings tunes the two-phase pipeline.
type AnalysisSettings struct {
	AIRetries       int      `yaml:"ai_retries"`
	BackoffBase     Duration `yaml:"backoff_base"`
	CacheTTL        Duration `yaml:"cache_ttl"`
	PostSampleLimit int      `yaml:"post_sample_limit"`
}

// CollectorSettings selects and credentials the Reddit data source.
type CollectorSettings struct {
	Mode         string `yaml:"mode"`
	UserAgent    string `yaml:"user_agent"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
}

// AISettings points at the refinement endpoint.
type AISettings struct {
	Endpoint string   `yaml:"endpoint"`
	APIKey   string   `yaml:"api_key"`
	Model    string   `yaml:"model"`
	Timeout  Duration `yaml:"timeout"`
}

// Settings is the full service configuration.
type Settings struct {
	Port      string            `yaml:"port"`
	OutputDir string            `yaml:"output_directory"`
	Queue     QueueSettings     `yaml:"queue"`
	Analysis  AnalysisSettings  `yaml:"analysis"`
	Collector CollectorSettings `yaml:"collector"`
	AI        AISettings        `yaml:"ai"`
}

// Defaults returns the settings used when no file is present.
func Defaults() *Settings {
	return &Settings{
		Port:      "8080",
		OutputDir: "data",
		Queue: QueueSettings{
			Capacity:    5,
			TaskTimeout: Duration(5 * time.Minute),
		},
		Analysis: AnalysisSettings{
			AIRetries:       2,
			BackoffBase:     Duration(2 * time.Second),
			CacheTTL:        Duration(time.Hour),
			PostSampleLimit: 500,
		},
		Collector: CollectorSettings{
			Mode: "public",
		},
		AI: AISettings{
			Timeout: Duration(60 * time.Second),
		},
	}
}

// Load reads settings from a YAML file, falling back to defaults when the file
// does not exist, then applies environment overrides. Call godotenv.Load first
// if a .env file should contribute.
func Load(path string) (*Settings, error) {
	settings := Defaults()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("parsing settings file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading settings file %s: %w", path, err)
	}

	settings.applyEnv()

	if settings.Queue.Capacity < 1 {
		return nil, fmt.Errorf("queue capacity must be at least 1, got %d", settings.Queue.Capacity)
	}
	return settings, nil
}

// applyEnv layers environment variables over file/default values.
func (s *Settings) applyEnv() {
	setString(&s.Port, "PORT")
	setString(&s.Collector.Mode, "COLLECTOR_MODE")
	setString(&s.Collector.UserAgent, "REDDIT_USER_AGENT")
	setString(&s.Collector.ClientID, "REDDIT_CLIENT_ID")
	setString(&s.Collector.ClientSecret, "REDDIT_CLIENT_SECRET")
	setString(&s.Collector.Username, "REDDIT_USERNAME")
	setString(&s.Collector.Password, "REDDIT_PASSWORD")
	setString(&s.AI.Endpoint, "AI_ENDPOINT")
	setString(&s.AI.APIKey, "AI_API_KEY")
	setString(&s.AI.Model, "AI_MODEL")
	if v := os.Getenv("QUEUE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.Queue.Capacity = n
		}
	}
	if v := os.Getenv("TASK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			s.Queue.TaskTimeout = Duration(d)
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
