package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ilramdhan/calc-suite/pkg/formula"
)

// Config holds all configuration for the application
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Worker   WorkerConfig
	Formula  FormulaConfig
}

// AppConfig holds application configuration
type AppConfig struct {
	Env  string
	Port string
	// Storage selects the repository backend: "postgres" or "memory"
	Storage string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	PoolMax         int
	PoolMinConns    int
	PoolMaxConnLife time.Duration
	// AppName is reported to PostgreSQL as application_name
	AppName string
	// ConnectAttempts is how often NewPool tries to reach the database
	ConnectAttempts int
}

// WorkerConfig holds worker configuration
type WorkerConfig struct {
	Count        int
	BatchSize    int
	PollInterval time.Duration
	// Inline runs batch jobs inside the API process as soon as they are
	// created. When false they wait for cmd/worker.
	Inline bool
}

// FormulaConfig holds formula engine configuration
type FormulaConfig struct {
	AngleMode formula.AngleMode  `yaml:"angle_mode"`
	CacheSize int                `yaml:"cache_size"`
	Constants map[string]float64 `yaml:"constants"`
}

// fileConfig is the optional YAML overlay named by CONFIG_FILE. Only the
// keys present in the file override the environment.
type fileConfig struct {
	App struct {
		Env     *string `yaml:"env"`
		Port    *string `yaml:"port"`
		Storage *string `yaml:"storage"`
	} `yaml:"app"`
	Worker struct {
		Count     *int  `yaml:"count"`
		BatchSize *int  `yaml:"batch_size"`
		Inline    *bool `yaml:"inline"`
	} `yaml:"worker"`
	Formula struct {
		AngleMode *formula.AngleMode `yaml:"angle_mode"`
		CacheSize *int               `yaml:"cache_size"`
		Constants map[string]float64 `yaml:"constants"`
	} `yaml:"formula"`
}

// Load loads configuration from environment variables, then applies the YAML
// file named by CONFIG_FILE if set
func Load() (*Config, error) {
	angle, err := formula.ParseAngleMode(getEnv("FORMULA_ANGLE_MODE", "radians"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse FORMULA_ANGLE_MODE: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Env:     getEnv("APP_ENV", "development"),
			Port:    getEnv("APP_PORT", "8080"),
			Storage: getEnv("STORAGE", "postgres"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Name:            getEnv("DB_NAME", "calc_suite"),
			PoolMax:         getEnvInt("DB_POOL_MAX", 20),
			PoolMinConns:    getEnvInt("DB_POOL_MIN", 2),
			PoolMaxConnLife: time.Duration(getEnvInt("DB_POOL_MAX_CONN_LIFE_MINUTES", 30)) * time.Minute,
			AppName:         getEnv("DB_APP_NAME", "calc-suite"),
			ConnectAttempts: getEnvInt("DB_CONNECT_ATTEMPTS", 5),
		},
		Worker: WorkerConfig{
			Count:        getEnvInt("WORKER_COUNT", 8),
			BatchSize:    getEnvInt("BATCH_SIZE", 500),
			PollInterval: time.Duration(getEnvInt("WORKER_POLL_SECONDS", 5)) * time.Second,
			Inline:       getEnvBool("WORKER_INLINE", true),
		},
		Formula: FormulaConfig{
			AngleMode: angle,
			CacheSize: getEnvInt("FORMULA_CACHE_SIZE", 1024),
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	setString(&c.App.Env, f.App.Env)
	setString(&c.App.Port, f.App.Port)
	setString(&c.App.Storage, f.App.Storage)
	setInt(&c.Worker.Count, f.Worker.Count)
	setInt(&c.Worker.BatchSize, f.Worker.BatchSize)
	setInt(&c.Formula.CacheSize, f.Formula.CacheSize)
	if f.Worker.Inline != nil {
		c.Worker.Inline = *f.Worker.Inline
	}
	if f.Formula.AngleMode != nil {
		c.Formula.AngleMode = *f.Formula.AngleMode
	}
	if len(f.Formula.Constants) > 0 {
		c.Formula.Constants = f.Formula.Constants
	}
	return nil
}

// Engine builds the formula engine described by the configuration
func (c *FormulaConfig) Engine() *formula.Engine {
	catalog := formula.DefaultCatalog()
	if len(c.Constants) > 0 {
		catalog = catalog.WithConstants(c.Constants)
	}
	opts := []formula.EngineOption{
		formula.WithCatalog(catalog),
		formula.WithDefaults(formula.EvalConfig{Angle: c.AngleMode}),
	}
	if c.CacheSize > 0 {
		opts = append(opts, formula.WithCache(formula.NewCache(c.CacheSize)))
	}
	return formula.NewEngine(opts...)
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.Name + "?sslmode=disable"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
