package config

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

var ErrSessionSecretRequired = errors.New("session-secret is required when google-oauth is configured")

type Config struct {
	LogLevel          string        `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort          string        `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	SocketPort        string        `yaml:"socket-port" env:"SOCKET_PORT" env-default:"9091"`
	SessionStore      string        `yaml:"session-store" env:"SESSION_STORE" env-default:"redis"`
	Redis             Redis         `yaml:"redis"`
	GoogleOAuth       GoogleOAuth   `yaml:"google-oauth"`
	SQLiteStoragePath string        `yaml:"sqlite-storage-path" env:"SQLITE_STORAGE_PATH" env-default:"users.db"`
	JWTSecretKey      string        `yaml:"jwt-secret-key" env:"JWT_SECRET" env-required:"true"`
	SessionSecret     string        `yaml:"session-secret" env:"SESSION_SECRET"`
	TokenTTL          time.Duration `yaml:"token-ttl" env:"TOKEN_TTL" env-default:"24h"`
	StoreTimeout      time.Duration `yaml:"store-timeout" env:"STORE_TIMEOUT" env-default:"3s"`
	AllowedOrigins    []string      `yaml:"allowed-origins" env:"ALLOWED_ORIGINS" env-default:"http://localhost:5173"`
}

const (
	SessionStoreRedis  = "redis"
	SessionStoreMemory = "memory"
)

type Redis struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type GoogleOAuth struct {
	ClientID     string   `yaml:"client-id" env:"GOOGLE_CLIENT_ID" env-default:""`
	ClientSecret string   `yaml:"client-secret" env:"GOOGLE_CLIENT_SECRET" env-default:""`
	RedirectURL  string   `yaml:"redirect-url" env:"GOOGLE_REDIRECT_URL" env-default:""`
	Scopes       []string `yaml:"scopes" env:"GOOGLE_SCOPES" env-default:"https://www.googleapis.com/auth/userinfo.email"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(err)
	}

	return config
}

func Load(path string) (*Config, error) {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("unable to load config file: %w", err)
	}

	if config.GoogleOAuth.Enabled() && config.SessionSecret == "" {
		return nil, ErrSessionSecretRequired
	}

	return config, nil
}

func (that *Redis) GetRedisAddr() string {
	return net.JoinHostPort(that.Host, that.Port)
}

// Enabled reports whether Google login is configured.
func (that *GoogleOAuth) Enabled() bool {
	return that.ClientID != "" && that.ClientSecret != ""
}
