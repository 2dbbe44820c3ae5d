package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	SourceZip      = "zip"
	SourcePostgres = "postgres"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Timetable TimetableConfig `yaml:"timetable"`
	Graph     GraphConfig     `yaml:"graph"`
	Search    SearchConfig    `yaml:"search"`
	Server    ServerConfig    `yaml:"server"`
	NATS      NATSConfig      `yaml:"nats"`
	Redis     RedisConfig     `yaml:"redis"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type DatabaseConfig struct {
	Host         string `yaml:"host"`
	Port         string `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	DBName       string `yaml:"dbname"`
	SSLMode      string `yaml:"sslmode" validate:"omitempty,oneof=disable require verify-ca verify-full"`
	KeepVersions int    `yaml:"keep_versions" validate:"gte=1"`

	// PruneInterval between background prunes while serving; zero disables them.
	PruneInterval time.Duration `yaml:"prune_interval" validate:"gte=0"`
}

// TimetableConfig selects where timetables come from and which services run.
type TimetableConfig struct {
	Source        string        `yaml:"source" validate:"oneof=zip postgres"`
	ZipPath       string        `yaml:"zip_path" validate:"required_if=Source zip"`
	Feed          string        `yaml:"feed"`
	ServiceIDs    []string      `yaml:"service_ids"`
	ServiceDate   string        `yaml:"service_date" validate:"omitempty,len=8,numeric"`
	CheckInterval time.Duration `yaml:"check_interval" validate:"gte=0"`
}

type GraphConfig struct {
	WalkingSpeedMetersPerMinute float64 `yaml:"walking_speed_m_per_min" validate:"gt=0"`
	TransferRadiusMeters        float64 `yaml:"transfer_radius_m" validate:"gte=0"`
}

type SearchConfig struct {
	Horizon   time.Duration `yaml:"horizon" validate:"gte=0"`
	MaxBudget time.Duration `yaml:"max_budget" validate:"gte=0"`
}

type ServerConfig struct {
	Listen        string `yaml:"listen" validate:"required"`
	MetricsListen string `yaml:"metrics_listen"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject" validate:"required_with=URL"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db" validate:"gte=0"`
	TTL      time.Duration `yaml:"ttl" validate:"gte=0"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	FilePath string `yaml:"file"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          "5432",
			User:          "postgres",
			DBName:        "planner",
			SSLMode:       "disable",
			KeepVersions:  3,
			PruneInterval: 24 * time.Hour,
		},
		Timetable: TimetableConfig{
			Source:        SourceZip,
			ZipPath:       "gtfs.zip",
			CheckInterval: 10 * time.Minute,
		},
		Graph: GraphConfig{
			WalkingSpeedMetersPerMinute: 80,
			TransferRadiusMeters:        300,
		},
		Search: SearchConfig{
			Horizon:   12 * time.Hour,
			MaxBudget: 4 * time.Hour,
		},
		Server: ServerConfig{
			Listen:        ":8080",
			MetricsListen: ":9090",
		},
		NATS: NATSConfig{
			Subject: "planner.graph.published",
		},
		Redis: RedisConfig{
			TTL: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, the YAML file named by
// PLANNER_CONFIG if set, and finally environment variables.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("PLANNER_CONFIG"))
}

// LoadFile is Load with an explicit file path; an empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnv("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.DBName = getEnv("DB_NAME", cfg.Database.DBName)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)

	cfg.Timetable.Source = getEnv("TIMETABLE_SOURCE", cfg.Timetable.Source)
	cfg.Timetable.ZipPath = getEnv("GTFS_ZIP_PATH", cfg.Timetable.ZipPath)
	cfg.Timetable.Feed = getEnv("GTFS_FEED", cfg.Timetable.Feed)
	cfg.Timetable.ServiceDate = getEnv("SERVICE_DATE", cfg.Timetable.ServiceDate)
	if v := os.Getenv("SERVICE_IDS"); v != "" {
		cfg.Timetable.ServiceIDs = splitList(v)
	}

	cfg.Server.Listen = getEnv("LISTEN_ADDR", cfg.Server.Listen)
	cfg.Server.MetricsListen = getEnv("METRICS_ADDR", cfg.Server.MetricsListen)
	cfg.NATS.URL = getEnv("NATS_URL", cfg.NATS.URL)
	cfg.NATS.Subject = getEnv("NATS_SUBJECT", cfg.NATS.Subject)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.FilePath = getEnv("LOG_FILE", cfg.Logging.FilePath)

	var err error
	if cfg.Timetable.CheckInterval, err = getDurationEnv("TIMETABLE_CHECK_INTERVAL", cfg.Timetable.CheckInterval); err != nil {
		return err
	}
	if cfg.Search.Horizon, err = getDurationEnv("SEARCH_HORIZON", cfg.Search.Horizon); err != nil {
		return err
	}
	if cfg.Search.MaxBudget, err = getDurationEnv("SEARCH_MAX_BUDGET", cfg.Search.MaxBudget); err != nil {
		return err
	}
	if cfg.Redis.TTL, err = getDurationEnv("REDIS_TTL", cfg.Redis.TTL); err != nil {
		return err
	}
	if cfg.Graph.WalkingSpeedMetersPerMinute, err = getFloatEnv("WALKING_SPEED_M_PER_MIN", cfg.Graph.WalkingSpeedMetersPerMinute); err != nil {
		return err
	}
	if cfg.Graph.TransferRadiusMeters, err = getFloatEnv("TRANSFER_RADIUS_M", cfg.Graph.TransferRadiusMeters); err != nil {
		return err
	}
	if cfg.Redis.DB, err = getIntEnv("REDIS_DB", cfg.Redis.DB); err != nil {
		return err
	}
	if cfg.Database.PruneInterval, err = getDurationEnv("DB_PRUNE_INTERVAL", cfg.Database.PruneInterval); err != nil {
		return err
	}
	if cfg.Database.KeepVersions, err = getIntEnv("DB_KEEP_VERSIONS", cfg.Database.KeepVersions); err != nil {
		return err
	}
	return nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, value)
	}
	return d, nil
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, value)
	}
	return n, nil
}

func getFloatEnv(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, value)
	}
	return f, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
