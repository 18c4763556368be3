package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env      string         `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
}

type HTTPConfig struct {
	Address        string   `yaml:"address" env:"HTTP_ADDRESS" env-default:""`
	PublicURL      string   `yaml:"public_url" env:"PUBLIC_URL"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" env-separator:","`
}

// DatabaseConfig is optional. Without a DSN rooms live in memory.
type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"DATABASE_DSN"`
}

// RedisConfig is optional. Without a URL the hub serves a single instance.
type RedisConfig struct {
	URL string `yaml:"url" env:"REDIS_URL"`
}

type StorageConfig struct {
	Endpoint        string `yaml:"endpoint" env:"S3_ENDPOINT"`
	Region          string `yaml:"region" env:"S3_REGION"`
	Bucket          string `yaml:"bucket" env:"S3_BUCKET"`
	AccessKeyID     string `yaml:"access_key_id" env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"S3_SECRET_ACCESS_KEY"`
	PublicURL       string `yaml:"public_url" env:"S3_PUBLIC_URL"`
	PathStyle       bool   `yaml:"path_style" env:"S3_PATH_STYLE"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key" env:"OPENAI_API_KEY"`
	BaseURL string `yaml:"base_url" env:"OPENAI_BASE_URL"`
	Model   string `yaml:"model" env:"OPENAI_IMAGE_MODEL"`
}

// ClientConfig configures a headless canvas participant.
type ClientConfig struct {
	Env             string        `yaml:"env" env:"ENV" env-default:"local"`
	ServerURL       string        `yaml:"server_url" env:"CANVAS_SERVER_URL" env-default:"http://localhost:8080"`
	Slug            string        `yaml:"slug" env:"CANVAS_SLUG"`
	DisplayName     string        `yaml:"display_name" env:"CANVAS_DISPLAY_NAME"`
	Avatar          string        `yaml:"avatar" env:"CANVAS_AVATAR"`
	IdentityPath    string        `yaml:"identity_path" env:"CANVAS_IDENTITY_PATH" env-default:"identity.db"`
	Width           float64       `yaml:"width" env-default:"1280"`
	Height          float64       `yaml:"height" env-default:"800"`
	ActiveStrokeTTL time.Duration `yaml:"active_stroke_ttl" env-default:"30s"`
	SnapshotEvery   time.Duration `yaml:"snapshot_every" env-default:"0s"`
	SnapshotPath    string        `yaml:"snapshot_path" env-default:"canvas.png"`
	// GesturesFromStdin reads JSON hand frames from standard input.
	GesturesFromStdin bool `yaml:"gestures_from_stdin" env:"CANVAS_GESTURES_STDIN"`
}

func MustLoad() *Config {
	configPath := fetchConfigPath("config/local.yaml")
	if configPath == "" {
		panic("config path is empty")
	}

	return MustLoadPath(configPath)
}

func MustLoadPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("cannot read config: " + err.Error())
	}

	cfg.setDefaults()

	return &cfg
}

// MustLoadClient reads the client config from the -config flag, CONFIG_PATH
// or config/bot.yaml, falling back to environment variables alone.
func MustLoadClient() *ClientConfig {
	var cfg ClientConfig

	path := fetchConfigPath("config/bot.yaml")
	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			panic("cannot read config: " + err.Error())
		}
		return &cfg
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		panic("cannot read env: " + err.Error())
	}
	return &cfg
}

func fetchConfigPath(fallback string) string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	if res == "" {
		res = fallback
	}

	return res
}

func (c *Config) setDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = "canvas-uploads"
	}
	if c.Storage.Region == "" {
		c.Storage.Region = "us-east-1"
	}
}
