// backend-go/internal/config/config.go
package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Cache    CacheConfig
	Storage  StorageConfig
	Engine   EngineConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

// DatabaseConfig selects the rule database. Driver is "postgres" or "sqlite3";
// for sqlite3 DBName is the file path.
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type AppConfig struct {
	DataDir string
}

type CacheConfig struct {
	Enabled       bool
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	TaxTTLSeconds int
}

// StorageConfig points at the S3-compatible bucket holding rule snapshots.
type StorageConfig struct {
	Enabled        bool
	Provider       string
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Bucket         string
	Region         string
	UseSSL         bool
	SnapshotPrefix string
	// Root is the bucket folder for the "s3" provider and the directory for
	// the "local" provider.
	Root string
}

type EngineConfig struct {
	DefaultScenario string
	CreditMemoSize  int
	OptimizerMemo   int
	BatchWorkers    int
	HydrateOnStart  bool
	ContractsFile   string
}

type LogConfig struct {
	Level  string
	Format string
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		setDefaults()

		// Read from environment variables
		viper.AutomaticEnv()

		ensureDir(viper.GetString("APP_DATA_DIR"))

		instance = fromViper()
	})

	return instance
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_MODE", "debug")
	viper.SetDefault("SERVER_READ_TIMEOUT", 15)
	viper.SetDefault("SERVER_WRITE_TIMEOUT", 15)
	viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	viper.SetDefault("DB_DRIVER", "postgres")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_NAME", "mixcredit")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("APP_DATA_DIR", "./data/output")
	viper.SetDefault("CACHE_ENABLED", false)
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("REDIS_HOST", "127.0.0.1")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CACHE_TAX_TTL_SECONDS", 300)
	viper.SetDefault("STORAGE_ENABLED", false)
	viper.SetDefault("STORAGE_PROVIDER", "minio")
	viper.SetDefault("STORAGE_ENDPOINT", "localhost:9000")
	viper.SetDefault("STORAGE_BUCKET", "mixcredit")
	viper.SetDefault("STORAGE_REGION", "us-east-1")
	viper.SetDefault("STORAGE_USE_SSL", false)
	viper.SetDefault("STORAGE_SNAPSHOT_PREFIX", "snapshots/rules")
	viper.SetDefault("STORAGE_ROOT", "")
	viper.SetDefault("ENGINE_DEFAULT_SCENARIO", "default")
	viper.SetDefault("ENGINE_CREDIT_MEMO_SIZE", 50)
	viper.SetDefault("ENGINE_OPTIMIZER_MEMO_SIZE", 50)
	viper.SetDefault("ENGINE_BATCH_WORKERS", 4)
	viper.SetDefault("ENGINE_HYDRATE_ON_START", true)
	viper.SetDefault("ENGINE_CONTRACTS_FILE", "")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "console")
}

func fromViper() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Mode:           viper.GetString("SERVER_MODE"),
			ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Driver:   viper.GetString("DB_DRIVER"),
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			DBName:   viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
		},
		App: AppConfig{
			DataDir: viper.GetString("APP_DATA_DIR"),
		},
		Cache: CacheConfig{
			Enabled:       viper.GetBool("CACHE_ENABLED"),
			RedisURL:      viper.GetString("REDIS_URL"),
			RedisHost:     viper.GetString("REDIS_HOST"),
			RedisPort:     viper.GetString("REDIS_PORT"),
			RedisPassword: viper.GetString("REDIS_PASSWORD"),
			RedisDB:       viper.GetInt("REDIS_DB"),
			TaxTTLSeconds: viper.GetInt("CACHE_TAX_TTL_SECONDS"),
		},
		Storage: StorageConfig{
			Enabled:        viper.GetBool("STORAGE_ENABLED"),
			Provider:       viper.GetString("STORAGE_PROVIDER"),
			Endpoint:       viper.GetString("STORAGE_ENDPOINT"),
			AccessKey:      viper.GetString("STORAGE_ACCESS_KEY"),
			SecretKey:      viper.GetString("STORAGE_SECRET_KEY"),
			Bucket:         viper.GetString("STORAGE_BUCKET"),
			Region:         viper.GetString("STORAGE_REGION"),
			UseSSL:         viper.GetBool("STORAGE_USE_SSL"),
			SnapshotPrefix: viper.GetString("STORAGE_SNAPSHOT_PREFIX"),
			Root:           viper.GetString("STORAGE_ROOT"),
		},
		Engine: EngineConfig{
			DefaultScenario: viper.GetString("ENGINE_DEFAULT_SCENARIO"),
			CreditMemoSize:  viper.GetInt("ENGINE_CREDIT_MEMO_SIZE"),
			OptimizerMemo:   viper.GetInt("ENGINE_OPTIMIZER_MEMO_SIZE"),
			BatchWorkers:    viper.GetInt("ENGINE_BATCH_WORKERS"),
			HydrateOnStart:  viper.GetBool("ENGINE_HYDRATE_ON_START"),
			ContractsFile:   viper.GetString("ENGINE_CONTRACTS_FILE"),
		},
		Log: LogConfig{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
		},
	}
}

// DriverName returns the database/sql driver for the configured backend.
func (d DatabaseConfig) DriverName() string {
	switch strings.ToLower(d.Driver) {
	case "sqlite", "sqlite3":
		return "sqlite3"
	default:
		return "postgres"
	}
}

// DSN builds the connection string for DriverName.
func (d DatabaseConfig) DSN() string {
	if d.DriverName() == "sqlite3" {
		return d.DBName
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// URL builds a postgres:// URL, as expected by pgx.
func (d DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

func ensureDir(dir string) {
	if dir == "" {
		return
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
