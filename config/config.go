package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds every setting of the service.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Storage StorageConfig `mapstructure:"storage"`
	Images  ImagesConfig  `mapstructure:"images"`
	OpenAI  OpenAIConfig  `mapstructure:"openai"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Search  SearchConfig  `mapstructure:"search"`
}

type ServerConfig struct {
	Listen         string   `mapstructure:"listen"`
	PublicURL      string   `mapstructure:"public_url"`
	CORSOrigins    []string `mapstructure:"cors_origins"`
	MaxUploadBytes int64    `mapstructure:"max_upload_bytes"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

// StorageConfig selects the record store: memory, sqlite, mongo or postgres.
type StorageConfig struct {
	Type          string `mapstructure:"type"`
	SQLitePath    string `mapstructure:"sqlite_path"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
}

// ImagesConfig selects the image store: filesystem or s3.
type ImagesConfig struct {
	Type       string `mapstructure:"type"`
	LocalPath  string `mapstructure:"local_path"`
	S3Bucket   string `mapstructure:"s3_bucket"`
	S3Region   string `mapstructure:"s3_region"`
	S3Endpoint string `mapstructure:"s3_endpoint"`
	S3Prefix   string `mapstructure:"s3_prefix"`
	// PublicURL is the base for returned image URLs. Empty uses the
	// server public URL (filesystem) or the bucket URL (s3).
	PublicURL string `mapstructure:"public_url"`
}

type OpenAIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Size    string        `mapstructure:"size"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	CreatorRoles  []string      `mapstructure:"creator_roles"`
	RegisterRoles []string      `mapstructure:"register_roles"`
	DefaultRole   string        `mapstructure:"default_role"`
	GitHub        OAuthConfig   `mapstructure:"github"`
	OIDC          OIDCConfig    `mapstructure:"oidc"`
}

type OAuthConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
}

type OIDCConfig struct {
	IssuerURL    string `mapstructure:"issuer_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
}

// RedisConfig enables the distributed create lock when Addr is set.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

type SearchConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
}

var envBindings = map[string]string{
	"server.listen":           "LISTEN_ADDRESS",
	"server.public_url":       "PUBLIC_URL",
	"server.cors_origins":     "CORS_ORIGINS",
	"server.max_upload_bytes": "MAX_UPLOAD_BYTES",

	"log.level":  "LOG_LEVEL",
	"log.format": "LOG_FORMAT",

	"storage.type":           "STORAGE_TYPE",
	"storage.sqlite_path":    "DATA_SOURCE_NAME",
	"storage.mongo_uri":      "MONGO_URI",
	"storage.mongo_database": "MONGO_DATABASE",
	"storage.postgres_dsn":   "POSTGRES_DSN",

	"images.type":        "IMAGE_STORAGE_TYPE",
	"images.local_path":  "LOCAL_STORAGE_PATH",
	"images.s3_bucket":   "S3_BUCKET_NAME",
	"images.s3_region":   "S3_REGION",
	"images.s3_endpoint": "S3_ENDPOINT",
	"images.s3_prefix":   "S3_PREFIX",
	"images.public_url":  "IMAGE_PUBLIC_URL",

	"openai.api_key":  "OPENAI_API_KEY",
	"openai.base_url": "OPENAI_BASE_URL",
	"openai.model":    "OPENAI_IMAGE_MODEL",
	"openai.size":     "OPENAI_IMAGE_SIZE",
	"openai.timeout":  "OPENAI_TIMEOUT",

	"auth.jwt_secret":         "JWT_SECRET",
	"auth.token_ttl":          "JWT_TTL",
	"auth.creator_roles":      "CREATOR_ROLES",
	"auth.register_roles":     "REGISTER_ROLES",
	"auth.default_role":       "DEFAULT_ROLE",

	"auth.github.client_id":     "GITHUB_CLIENT_ID",
	"auth.github.client_secret": "GITHUB_CLIENT_SECRET",
	"auth.github.redirect_url":  "GITHUB_REDIRECT_URL",
	"auth.oidc.issuer_url":      "OIDC_ISSUER_URL",
	"auth.oidc.client_id":       "OIDC_CLIENT_ID",
	"auth.oidc.client_secret":   "OIDC_CLIENT_SECRET",
	"auth.oidc.redirect_url":    "OIDC_REDIRECT_URL",

	"redis.addr":     "REDIS_ADDR",
	"redis.password": "REDIS_PASSWORD",
	"redis.db":       "REDIS_DB",
	"redis.lock_ttl": "REDIS_LOCK_TTL",

	"search.default_limit": "SEARCH_DEFAULT_LIMIT",
	"search.max_limit":     "SEARCH_MAX_LIMIT",
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("server.listen", ":8000")
	vip.SetDefault("server.public_url", "http://localhost:8000")
	vip.SetDefault("server.cors_origins", []string{"https://*", "http://*"})
	vip.SetDefault("server.max_upload_bytes", 10<<20)

	vip.SetDefault("log.level", "info")
	vip.SetDefault("log.format", "text")

	vip.SetDefault("storage.type", "memory")
	vip.SetDefault("storage.sqlite_path", "adverts.db")
	vip.SetDefault("storage.mongo_database", "advert_manager_db")

	vip.SetDefault("images.type", "filesystem")
	vip.SetDefault("images.local_path", "./data/images")

	vip.SetDefault("openai.base_url", "https://api.openai.com")
	vip.SetDefault("openai.model", "dall-e-3")
	vip.SetDefault("openai.size", "1024x1024")
	vip.SetDefault("openai.timeout", 2*time.Minute)

	vip.SetDefault("auth.token_ttl", 7*24*time.Hour)
	vip.SetDefault("auth.creator_roles", []string{"poster", "vendor", "host", "admin"})
	vip.SetDefault("auth.register_roles", []string{"user", "poster", "vendor", "host"})
	vip.SetDefault("auth.default_role", "user")

	vip.SetDefault("redis.lock_ttl", 10*time.Second)

	vip.SetDefault("search.default_limit", 10)
	vip.SetDefault("search.max_limit", 50)
}

// Load reads configuration from defaults, the optional file at configPath and
// the environment, in increasing order of precedence.
func Load(configPath string) (*Config, error) {
	vip := viper.New()
	setDefaults(vip)

	for key, env := range envBindings {
		if err := vip.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
			}
			logrus.WithField("path", configPath).Info("Config file not found, using environment and defaults")
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Comma separated env values arrive as a single element.
	cfg.Server.CORSOrigins = splitList(cfg.Server.CORSOrigins)
	cfg.Auth.CreatorRoles = splitList(cfg.Auth.CreatorRoles)
	cfg.Auth.RegisterRoles = splitList(cfg.Auth.RegisterRoles)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required combinations of settings.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "memory", "sqlite":
	case "mongo":
		if c.Storage.MongoURI == "" {
			return fmt.Errorf("storage type mongo requires MONGO_URI")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage type postgres requires POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("unsupported storage type %q", c.Storage.Type)
	}

	switch c.Images.Type {
	case "filesystem":
	case "s3":
		if c.Images.S3Bucket == "" {
			return fmt.Errorf("image storage type s3 requires S3_BUCKET_NAME")
		}
	default:
		return fmt.Errorf("unsupported image storage type %q", c.Images.Type)
	}

	if c.Search.DefaultLimit <= 0 || c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("search limits must satisfy 0 < default_limit <= max_limit")
	}
	if c.Redis.Addr != "" && c.Redis.LockTTL < time.Second {
		return fmt.Errorf("redis.lock_ttl must be at least 1s, got %s", c.Redis.LockTTL)
	}
	if len(c.Auth.CreatorRoles) == 0 {
		return fmt.Errorf("at least one creator role is required")
	}
	return nil
}

func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
