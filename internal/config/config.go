package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Database     DatabaseConfig     `mapstructure:"database"`
	OpenAI       OpenAIConfig       `mapstructure:"openai"`
	Books        BooksConfig        `mapstructure:"books"`
	Dictionaries DictionariesConfig `mapstructure:"dictionaries"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Capture      CaptureConfig      `mapstructure:"capture"`
	Speech       SpeechConfig       `mapstructure:"speech"`
	Translation  TranslationConfig  `mapstructure:"translation"`
	Outputs      OutputsConfig      `mapstructure:"outputs"`
}

type ServerConfig struct {
	Port      int             `mapstructure:"port" validate:"gt=0,lte=65535"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	TLS       TLSConfig       `mapstructure:"tls"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimitConfig limits the RPCs that call paid AI endpoints, per user.
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute" validate:"gt=0"`
	Burst             int `mapstructure:"burst" validate:"gt=0"`
}

type TLSConfig struct {
	CertFile string `mapstructure:"cert_file" validate:"omitempty,file"`
	KeyFile  string `mapstructure:"key_file" validate:"omitempty,file"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=memory mysql"`
}

type DatabaseConfig struct {
	Host            string            `mapstructure:"host"`
	Port            int               `mapstructure:"port"`
	Database        string            `mapstructure:"database"`
	Username        string            `mapstructure:"username"`
	Password        string            `mapstructure:"password"`
	TLS             bool              `mapstructure:"tls"`
	Params          map[string]string `mapstructure:"params"`
	MaxOpenConns    int               `mapstructure:"max_open_conns"`
	MaxIdleConns    int               `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int               `mapstructure:"conn_max_lifetime_seconds"`
	ReadyAttempts   uint              `mapstructure:"ready_attempts"`
}

type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url" validate:"url"`
	Model       string        `mapstructure:"model" validate:"required"`
	SpeechModel string        `mapstructure:"speech_model" validate:"required"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type BooksConfig struct {
	BaseURL    string        `mapstructure:"base_url" validate:"url"`
	APIKey     string        `mapstructure:"api_key"`
	MaxResults int           `mapstructure:"max_results" validate:"gt=0,lte=40"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type DictionariesConfig struct {
	RapidAPI RapidAPIConfig `mapstructure:"rapidapi"`
}

type RapidAPIConfig struct {
	CacheDirectory string `mapstructure:"cache_directory"`
	Host           string `mapstructure:"host"`
	Key            string `mapstructure:"key"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer" validate:"required"`
	TokenTTL  time.Duration `mapstructure:"token_ttl" validate:"gt=0"`
}

type CaptureConfig struct {
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type SpeechConfig struct {
	CacheSize    int           `mapstructure:"cache_size" validate:"gt=0"`
	DefaultVoice string        `mapstructure:"default_voice" validate:"oneof=alloy echo fable onyx nova shimmer"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type TranslationConfig struct {
	DefaultLanguage string `mapstructure:"default_language" validate:"required"`
}

type OutputsConfig struct {
	ExportDirectory string `mapstructure:"export_directory"`
}

type ConfigLoader struct {
	viper      *viper.Viper
	validator  *validator.Validate
	translator ut.Translator
}

func NewConfigLoader(configFile string) (*ConfigLoader, error) {
	validate, trans, err := newValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create new validator: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/mindbank")
	}

	return &ConfigLoader{
		viper:      v,
		validator:  validate,
		translator: trans,
	}, nil
}

func (loader *ConfigLoader) Load() (*Config, error) {
	v := loader.viper

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.rate_limit.requests_per_minute", 30)
	v.SetDefault("server.rate_limit.burst", 10)
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.database", "mindbank")
	v.SetDefault("database.username", "user")
	v.SetDefault("database.ready_attempts", 5)
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.speech_model", "tts-1")
	v.SetDefault("openai.timeout", 30*time.Second)
	v.SetDefault("books.base_url", "https://www.googleapis.com")
	v.SetDefault("books.max_results", 5)
	v.SetDefault("books.timeout", 10*time.Second)
	v.SetDefault("dictionaries.rapidapi.cache_directory", filepath.Join("dictionaries", "rapidapi"))
	v.SetDefault("auth.issuer", "mindbank")
	v.SetDefault("auth.token_ttl", 30*24*time.Hour)
	v.SetDefault("capture.timeout", 30*time.Second)
	v.SetDefault("speech.cache_size", 128)
	v.SetDefault("speech.default_voice", "alloy")
	v.SetDefault("speech.timeout", 30*time.Second)
	v.SetDefault("translation.default_language", "Spanish")
	v.SetDefault("outputs.export_directory", "exports")

	// Secrets are bound to environment variables only (not from config file)
	envBindings := []struct {
		key string
		env string
	}{
		{"openai.api_key", "OPENAI_API_KEY"},
		{"openai.model", "OPENAI_MODEL"},
		{"books.api_key", "GOOGLE_BOOKS_API_KEY"},
		{"dictionaries.rapidapi.host", "RAPID_API_HOST"},
		{"dictionaries.rapidapi.key", "RAPID_API_KEY"},
		{"database.password", "DB_PASSWORD"},
		{"auth.jwt_secret", "MINDBANK_JWT_SECRET"},
	}
	for _, b := range envBindings {
		if err := v.BindEnv(b.key, b.env); err != nil {
			return nil, fmt.Errorf("failed to bind %s environment variable: %w", b.env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("configuration file found but could not be read: %w. Please check the file format and permissions", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration format: %w", err)
	}

	if err := loader.validator.Struct(cfg); err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		var errorMsgs []string
		for _, e := range validationErrors {
			errorMsgs = append(errorMsgs, e.Translate(loader.translator))
		}
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errorMsgs, ", "))
	}

	return &cfg, nil
}

// Load reads the configuration file, or the default locations when configFile
// is empty.
func Load(configFile string) (*Config, error) {
	loader, err := NewConfigLoader(configFile)
	if err != nil {
		return nil, err
	}
	return loader.Load()
}
