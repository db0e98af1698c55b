package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Hosted n8n webhooks used when no override is configured.
const (
	DefaultGenerateURL        = "https://scriptslapv1.app.n8n.cloud/webhook/scriptslap-analysis-trigger"
	DefaultRefineHookURL      = "https://scriptslapv1.app.n8n.cloud/webhook/refine-hook-trigger"
	DefaultRefineCTAURL       = "https://scriptslapv1.app.n8n.cloud/webhook/refine-cta-trigger"
	DefaultRefineParagraphURL = "https://scriptslapv1.app.n8n.cloud/webhook/refine-paragraph-trigger"
	DefaultAddParagraphURL    = "https://scriptslapv1.app.n8n.cloud/webhook/add-paragraph-trigger"
)

type Config struct {
	Env string `yaml:"env" envconfig:"ENV"`

	Server struct {
		Port               string   `yaml:"port" envconfig:"SERVER_PORT"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins" envconfig:"CORS_ALLOWED_ORIGINS"`
	} `yaml:"server"`

	Log struct {
		Level    string `yaml:"level" envconfig:"LOG_LEVEL"`
		Encoding string `yaml:"encoding" envconfig:"LOG_ENCODING"`
	} `yaml:"log"`

	MySQL struct {
		DSN        string `yaml:"dsn" envconfig:"MYSQL_DSN"`
		SchemaFile string `yaml:"schema_file" envconfig:"MYSQL_SCHEMA_FILE"`
	} `yaml:"mysql"`

	Redis struct {
		Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
		Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" envconfig:"REDIS_DB"`
	} `yaml:"redis"`

	Auth struct {
		JWTSecret string `yaml:"jwt_secret" envconfig:"JWT_SECRET"`
		Audience  string `yaml:"audience" envconfig:"JWT_AUDIENCE"`
	} `yaml:"auth"`

	Workflow struct {
		GenerateURL        string        `yaml:"generate_url" envconfig:"N8N_GENERATION_WEBHOOK_URL"`
		RefineHookURL      string        `yaml:"refine_hook_url" envconfig:"N8N_REFINE_HOOK_URL"`
		RefineCTAURL       string        `yaml:"refine_cta_url" envconfig:"N8N_REFINE_CTA_URL"`
		RefineParagraphURL string        `yaml:"refine_paragraph_url" envconfig:"N8N_REFINE_PARAGRAPH_URL"`
		AddParagraphURL    string        `yaml:"add_paragraph_url" envconfig:"N8N_ADD_PARAGRAPH_URL"`
		Timeout            time.Duration `yaml:"timeout" envconfig:"WORKFLOW_TIMEOUT"`
		GenerationDeadline time.Duration `yaml:"generation_deadline" envconfig:"WORKFLOW_GENERATION_DEADLINE"`
		RefinementDeadline time.Duration `yaml:"refinement_deadline" envconfig:"WORKFLOW_REFINEMENT_DEADLINE"`
		CallbackSecret     string        `yaml:"callback_secret" envconfig:"WORKFLOW_CALLBACK_SECRET"`
	} `yaml:"workflow"`

	Credits struct {
		GenerateCost int `yaml:"generate_cost" envconfig:"CREDITS_GENERATE_COST"`
		RefineCost   int `yaml:"refine_cost" envconfig:"CREDITS_REFINE_COST"`
	} `yaml:"credits"`

	Worker struct {
		Concurrency int `yaml:"concurrency" envconfig:"WORKER_CONCURRENCY"`
	} `yaml:"worker"`

	Realtime struct {
		PollInterval time.Duration `yaml:"poll_interval" envconfig:"REALTIME_POLL_INTERVAL"`
	} `yaml:"realtime"`

	MinIO struct {
		Endpoint      string        `yaml:"endpoint" envconfig:"MINIO_ENDPOINT"`
		AccessKey     string        `yaml:"access_key" envconfig:"MINIO_ACCESS_KEY"`
		SecretKey     string        `yaml:"secret_key" envconfig:"MINIO_SECRET_KEY"`
		Bucket        string        `yaml:"bucket" envconfig:"MINIO_BUCKET"`
		UseSSL        bool          `yaml:"use_ssl" envconfig:"MINIO_USE_SSL"`
		PresignExpiry time.Duration `yaml:"presign_expiry" envconfig:"MINIO_PRESIGN_EXPIRY"`
	} `yaml:"minio"`
}

// Default returns the configuration used before the file and environment are applied.
func Default() *Config {
	cfg := &Config{Env: "development"}
	cfg.Server.Port = ":8080"
	cfg.Server.CORSAllowedOrigins = []string{"http://localhost:8080", "http://localhost:5173"}
	cfg.Log.Level = "info"
	cfg.Log.Encoding = "json"
	cfg.MySQL.SchemaFile = "doc/sql/scriptslap.sql"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Auth.Audience = "authenticated"
	cfg.Workflow.Timeout = 30 * time.Second
	cfg.Workflow.GenerationDeadline = 20 * time.Minute
	cfg.Workflow.RefinementDeadline = 5 * time.Minute
	cfg.Credits.GenerateCost = 3
	cfg.Credits.RefineCost = 1
	cfg.Worker.Concurrency = 5
	cfg.Realtime.PollInterval = time.Second
	cfg.MinIO.Bucket = "scriptslap-exports"
	cfg.MinIO.PresignExpiry = 24 * time.Hour
	return cfg
}

// Load builds the configuration from defaults, the YAML file at path, an optional
// .env file and finally the process environment.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		switch {
		case err == nil:
			defer f.Close()
			if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
				return nil, fmt.Errorf("decode config file %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
			// env-only deployments
		default:
			return nil, fmt.Errorf("open config file %s: %w", path, err)
		}
	}

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("load %s: %w", envFile, err)
			}
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process env vars: %w", err)
	}

	cfg.applyWebhookFallbacks()

	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET not set")
	}
	if cfg.Credits.GenerateCost <= 0 || cfg.Credits.RefineCost <= 0 {
		return nil, errors.New("credit costs must be positive")
	}
	return cfg, nil
}

func (c *Config) applyWebhookFallbacks() {
	c.Workflow.GenerateURL = orDefault(c.Workflow.GenerateURL, DefaultGenerateURL)
	c.Workflow.RefineHookURL = orDefault(c.Workflow.RefineHookURL, DefaultRefineHookURL)
	c.Workflow.RefineCTAURL = orDefault(c.Workflow.RefineCTAURL, DefaultRefineCTAURL)
	c.Workflow.RefineParagraphURL = orDefault(c.Workflow.RefineParagraphURL, DefaultRefineParagraphURL)
	c.Workflow.AddParagraphURL = orDefault(c.Workflow.AddParagraphURL, DefaultAddParagraphURL)
}

// orDefault treats the literal "undefined" left behind by some deploy tooling as unset.
func orDefault(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" || v == "undefined" {
		return def
	}
	return v
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
