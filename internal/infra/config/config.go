package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	App        AppConfig        `toml:"app"`
	DB         DBConfig         `toml:"db"`
	LLM        LLMConfig        `toml:"llm"`
	Retrieval  RetrievalConfig  `toml:"retrieval"`
	Validation ValidationConfig `toml:"validation"`
	Confidence ConfidenceConfig `toml:"confidence"`
	Cache      CacheConfig      `toml:"cache"`
	Telemetry  TelemetryConfig  `toml:"telemetry"`
	Loader     LoaderConfig     `toml:"loader"`
}

type AppConfig struct {
	Name        string   `toml:"name"`
	Env         string   `toml:"env"`
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	Version     string   `toml:"version"`
	CORSOrigins []string `toml:"cors_origins"`
}

type DBConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Name     string `toml:"name"`
	SSLMode  string `toml:"sslmode"`
}

type LLMConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	EmbeddingModel string `toml:"embedding_model"`
	MaxTokens      int    `toml:"max_tokens"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type RetrievalConfig struct {
	TopK          int     `toml:"top_k"`
	MinSimilarity float64 `toml:"min_similarity"`
}

type ValidationConfig struct {
	MinQuestionLength int      `toml:"min_question_length"`
	MaxQuestionLength int      `toml:"max_question_length"`
	DefaultProvider   string   `toml:"default_provider"`
	DomainKeywords    []string `toml:"domain_keywords"`
}

type ConfidenceConfig struct {
	LowThreshold    float64  `toml:"low_threshold"`
	CitationPhrases []string `toml:"citation_phrases"`
	HedgePhrases    []string `toml:"hedge_phrases"`
}

type CacheConfig struct {
	Enabled    bool `toml:"enabled"`
	TTLSeconds int  `toml:"ttl_seconds"`
	Size       int  `toml:"size"`
}

type TelemetryConfig struct {
	OTelEnabled bool `toml:"otel_enabled"`
}

type LoaderConfig struct {
	DataDir            string  `toml:"data_dir"`
	EmbedBatchSize     int     `toml:"embed_batch_size"`
	EmbedRatePerSecond float64 `toml:"embed_rate_per_second"`
}

// Load builds the configuration from defaults, an optional TOML file
// (CONFIG_FILE, default configs/config.toml), and environment overrides,
// in that order of precedence.
func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := getEnv("CONFIG_FILE", "configs/config.toml")
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("decode config file failed: %w", err)
		}
	}

	overrideByEnv(cfg)
	return cfg, nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User,
		c.DB.Password,
		c.DB.Host,
		c.DB.Port,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "policy-rag",
			Env:         "development",
			Host:        "0.0.0.0",
			Port:        8080,
			Version:     "1.0.0",
			CORSOrigins: []string{"*"},
		},
		DB: DBConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "policy_user",
			Password: "policy_password",
			Name:     "policy_rag",
			SSLMode:  "disable",
		},
		LLM: LLMConfig{
			BaseURL:        "https://api.openai.com/v1",
			APIKey:         "",
			Model:          "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			MaxTokens:      500,
			TimeoutSeconds: 90,
		},
		Retrieval: RetrievalConfig{
			TopK:          5,
			MinSimilarity: 0.7,
		},
		Validation: ValidationConfig{
			MinQuestionLength: 5,
			MaxQuestionLength: 500,
			DefaultProvider:   "UHC",
			DomainKeywords: []string{
				"coverage", "policy", "insurance", "claim", "procedure",
				"treatment", "medical", "surgery", "diagnostic", "bmi",
				"criteria", "approval", "authorization", "covered",
			},
		},
		Confidence: ConfidenceConfig{
			LowThreshold: 0.5,
			CitationPhrases: []string{
				"according to", "policy", "states", "requires",
			},
			HedgePhrases: []string{
				"might", "possibly", "unclear", "not sure", "don't have enough",
			},
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTLSeconds: 86400,
			Size:       512,
		},
		Telemetry: TelemetryConfig{
			OTelEnabled: false,
		},
		Loader: LoaderConfig{
			DataDir:            "data/raw",
			EmbedBatchSize:     10,
			EmbedRatePerSecond: 5,
		},
	}
}

func overrideByEnv(cfg *Config) {
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnvInt("APP_PORT", cfg.App.Port)
	cfg.App.CORSOrigins = getEnvList("CORS_ORIGINS", cfg.App.CORSOrigins)

	cfg.DB.Host = getEnv("DB_HOST", cfg.DB.Host)
	cfg.DB.Port = getEnvInt("DB_PORT", cfg.DB.Port)
	cfg.DB.User = getEnv("DB_USER", cfg.DB.User)
	cfg.DB.Password = getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", cfg.DB.Password)
	cfg.DB.Name = getEnv("DB_NAME", cfg.DB.Name)
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", cfg.DB.SSLMode)

	cfg.LLM.BaseURL = getEnv("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = getSecret("LLM_API_KEY", "LLM_API_KEY_FILE", cfg.LLM.APIKey)
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.EmbeddingModel = getEnv("LLM_EMBEDDING_MODEL", cfg.LLM.EmbeddingModel)
	cfg.LLM.MaxTokens = getEnvInt("LLM_MAX_TOKENS", cfg.LLM.MaxTokens)
	cfg.LLM.TimeoutSeconds = getEnvInt("LLM_TIMEOUT_SECONDS", cfg.LLM.TimeoutSeconds)

	cfg.Retrieval.TopK = getEnvInt("RETRIEVAL_TOP_K", cfg.Retrieval.TopK)
	cfg.Retrieval.MinSimilarity = getEnvFloat("RETRIEVAL_MIN_SIMILARITY", cfg.Retrieval.MinSimilarity)

	cfg.Validation.MinQuestionLength = getEnvInt("VALIDATION_MIN_QUESTION_LENGTH", cfg.Validation.MinQuestionLength)
	cfg.Validation.MaxQuestionLength = getEnvInt("VALIDATION_MAX_QUESTION_LENGTH", cfg.Validation.MaxQuestionLength)
	cfg.Validation.DefaultProvider = getEnv("VALIDATION_DEFAULT_PROVIDER", cfg.Validation.DefaultProvider)

	cfg.Confidence.LowThreshold = getEnvFloat("CONFIDENCE_LOW_THRESHOLD", cfg.Confidence.LowThreshold)

	cfg.Cache.Enabled = getEnvBool("CACHE_ENABLED", cfg.Cache.Enabled)
	cfg.Cache.TTLSeconds = getEnvInt("CACHE_TTL_SECONDS", cfg.Cache.TTLSeconds)
	cfg.Cache.Size = getEnvInt("CACHE_SIZE", cfg.Cache.Size)

	cfg.Telemetry.OTelEnabled = getEnvBool("OTEL_ENABLED", cfg.Telemetry.OTelEnabled)

	cfg.Loader.DataDir = getEnv("LOADER_DATA_DIR", cfg.Loader.DataDir)
	cfg.Loader.EmbedBatchSize = getEnvInt("LOADER_EMBED_BATCH_SIZE", cfg.Loader.EmbedBatchSize)
	cfg.Loader.EmbedRatePerSecond = getEnvFloat("LOADER_EMBED_RATE_PER_SECOND", cfg.Loader.EmbedRatePerSecond)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		var items []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				items = append(items, trimmed)
			}
		}
		if len(items) > 0 {
			return items
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
