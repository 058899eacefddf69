package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort  string `mapstructure:"APP_PORT"`
	AppMode  string `mapstructure:"APP_MODE"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Portal side.
	BackendURL        string        `mapstructure:"BACKEND_URL"`
	MockAuth          bool          `mapstructure:"MOCK_AUTH"`
	MockAuthDelay     time.Duration `mapstructure:"MOCK_AUTH_DELAY"`
	SessionStore      string        `mapstructure:"SESSION_STORE"`
	SessionDBPath     string        `mapstructure:"SESSION_DB_PATH"`
	SessionNamespace  string        `mapstructure:"SESSION_NAMESPACE"`
	RequestTimeout    time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	MaxRequestsPerMin int           `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Redis configuration.
	RedisAddr      string `mapstructure:"REDIS_ADDR"`
	RedisPassword  string `mapstructure:"REDIS_PASSWORD"`
	RedisSessionDB int    `mapstructure:"REDIS_SESSION_DB"`
	RedisAuthDB    int    `mapstructure:"REDIS_AUTH_DB"`

	// Mock backend.
	BackendPort     string        `mapstructure:"BACKEND_PORT"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	DatabaseName    string        `mapstructure:"DATABASE_NAME"`
	JWTSecret       string        `mapstructure:"JWT_SECRET"`
	AccessTokenTTL  time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL time.Duration `mapstructure:"REFRESH_TOKEN_TTL"`
	RefreshStore    string        `mapstructure:"REFRESH_STORE"`
	SeedDemo        bool          `mapstructure:"SEED_DEMO_ACCOUNTS"`
	CORSOrigins     string        `mapstructure:"CORS_ORIGINS"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "3000")
	v.SetDefault("APP_MODE", "portal")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("BACKEND_URL", "http://localhost:8080/api")
	v.SetDefault("MOCK_AUTH", false)
	v.SetDefault("MOCK_AUTH_DELAY", "500ms")
	v.SetDefault("SESSION_STORE", "sqlite")
	v.SetDefault("SESSION_DB_PATH", "session.db")
	v.SetDefault("SESSION_NAMESPACE", "water_payment")
	v.SetDefault("REQUEST_TIMEOUT", "10s")
	v.SetDefault("MAX_REQUESTS_PER_MIN", 600)

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_SESSION_DB", 1)
	v.SetDefault("REDIS_AUTH_DB", 2)

	v.SetDefault("BACKEND_PORT", "8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DATABASE_NAME", "rwandabill")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("REFRESH_TOKEN_TTL", "168h")
	v.SetDefault("REFRESH_STORE", "memory")
	v.SetDefault("SEED_DEMO_ACCOUNTS", true)
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}

// AllowedOrigins splits CORS_ORIGINS.
func AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(AppConfig.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
