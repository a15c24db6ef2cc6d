package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const ENV_FILE = ".env"
const CONFIG_FILE = "config.yaml"

type AppConfig struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Provider ProviderConfig `yaml:"provider"`
	Client   ClientConfig   `yaml:"client"`
	Titler   TitlerConfig   `yaml:"titler"`
	EventBus EventBusConfig `yaml:"eventbus"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	// File 이 지정되면 콘솔 대신 파일(rotation)로 로그를 남긴다.
	File string `yaml:"file"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// CompletionProvider 는 POST /chat 이 사용할 LLM 공급자다. (gemini | openrouter)
	CompletionProvider string          `yaml:"completion_provider"`
	CompletionModel    string          `yaml:"completion_model"`
	RateLimit          RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig 는 클라이언트 IP 별 스트리밍 요청 한도다.
// RequestsPerSecond 가 0 이하면 제한 없음으로 간주한다.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type StorageConfig struct {
	// Driver 는 mongo 또는 sqlite 이다.
	Driver      string `yaml:"driver"`
	MongoURI    string `yaml:"mongo_uri"`
	MongoDBName string `yaml:"mongo_db_name"`
	SQLitePath  string `yaml:"sqlite_path"`
}

type ProviderConfig struct {
	OpenRouterURL    string `yaml:"openrouter_url"`
	OpenRouterAPIKey string `yaml:"-"`
	GeminiAPIKey     string `yaml:"-"`
	TimeoutSeconds   int    `yaml:"timeout_seconds"`
}

type ClientConfig struct {
	APIBaseURL string `yaml:"api_base_url"`
	DataDir    string `yaml:"data_dir"`
	// Transport 는 remote(POST /chat 경유) 또는 openrouter(직접 호출)이다.
	Transport    string        `yaml:"transport"`
	CatalogTTL   time.Duration `yaml:"catalog_ttl"`
	Instructions string        `yaml:"instructions"`
}

// TitlerConfig 는 채팅 제목 생성용 LLM 호출에 대한 속도/일일 한도를 정의한다.
type TitlerConfig struct {
	Model string `yaml:"model"`
	// RequestsPerMinute 가 0 이하면 제한 없음으로 간주한다.
	RequestsPerMinute int `yaml:"requests_per_minute"`
	// RequestsPerDay 가 0 이하면 제한 없음으로 간주한다.
	RequestsPerDay int `yaml:"requests_per_day"`
}

type EventBusConfig struct {
	Enabled bool `yaml:"enabled"`
}

var config *AppConfig

func InitApp() {
	c, err := Load(GetBasePath())
	if err != nil {
		panic(err)
	}
	config = c
}

func GetConfig() AppConfig {
	if config == nil {
		InitApp()
	}

	return *config
}

// Load reads .env and config.yaml from dir, applies defaults and overlays
// secrets from the environment. A missing config.yaml is not an error.
func Load(dir string) (*AppConfig, error) {
	// load environment variables
	_ = godotenv.Load(filepath.Join(dir, ENV_FILE))

	var c AppConfig
	data, err := os.ReadFile(filepath.Join(dir, CONFIG_FILE))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", CONFIG_FILE, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", CONFIG_FILE, err)
		}
	}

	c.applyEnv()
	c.applyDefaults()
	return &c, nil
}

func (c *AppConfig) applyEnv() {
	if v := os.Getenv("API_BASE_URL"); v != "" {
		c.Client.APIBaseURL = v
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		c.Storage.MongoURI = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	c.Provider.OpenRouterAPIKey = os.Getenv("OPENROUTER_API_KEY")
	c.Provider.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
}

func (c *AppConfig) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.CompletionProvider == "" {
		c.Server.CompletionProvider = "gemini"
	}
	if c.Server.CompletionModel == "" {
		c.Server.CompletionModel = "gemini-2.5-flash"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "mongo"
	}
	if c.Storage.MongoDBName == "" {
		c.Storage.MongoDBName = "aichat"
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "aichat.db"
	}
	if c.Provider.OpenRouterURL == "" {
		c.Provider.OpenRouterURL = "https://openrouter.ai/api/v1"
	}
	if c.Provider.TimeoutSeconds <= 0 {
		c.Provider.TimeoutSeconds = 120
	}
	if c.Client.Transport == "" {
		c.Client.Transport = "remote"
	}
	if c.Client.CatalogTTL <= 0 {
		c.Client.CatalogTTL = time.Hour
	}
	if c.Client.DataDir == "" {
		c.Client.DataDir = defaultDataDir()
	}
	if c.Titler.Model == "" {
		c.Titler.Model = "gemini-2.5-flash"
	}
}

// ValidateClient checks what the terminal client needs before it can start:
// a valid API base URL and, for the direct transport, a provider key.
func ValidateClient(c AppConfig) error {
	var errs []error
	if err := validateURL("API_BASE_URL", c.Client.APIBaseURL); err != nil {
		errs = append(errs, err)
	}
	switch c.Client.Transport {
	case "remote":
	case "openrouter":
		if strings.TrimSpace(c.Provider.OpenRouterAPIKey) == "" {
			errs = append(errs, errors.New("OPENROUTER_API_KEY is required for the openrouter transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown client transport %q", c.Client.Transport))
	}
	return errors.Join(errs...)
}

// ValidateServer checks the API server configuration.
func ValidateServer(c AppConfig) error {
	var errs []error
	switch c.Storage.Driver {
	case "mongo":
		if strings.TrimSpace(c.Storage.MongoURI) == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo storage driver"))
		}
	case "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	switch c.Server.CompletionProvider {
	case "gemini":
		if strings.TrimSpace(c.Provider.GeminiAPIKey) == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini completion provider"))
		}
	case "openrouter":
		if strings.TrimSpace(c.Provider.OpenRouterAPIKey) == "" {
			errs = append(errs, errors.New("OPENROUTER_API_KEY is required for the openrouter completion provider"))
		}
		if err := validateURL("provider.openrouter_url", c.Provider.OpenRouterURL); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, fmt.Errorf("unknown completion provider %q", c.Server.CompletionProvider))
	}
	return errors.Join(errs...)
}

func validateURL(name, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s must be a valid URL: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("%s must be a valid URL", name)
	}
	return nil
}

func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(homeDir) == "" {
		return ".ai-chat"
	}
	return filepath.Join(homeDir, ".ai-chat")
}

func GetBasePath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		cfgPath := filepath.Join(dir, CONFIG_FILE)
		if info, err := os.Stat(cfgPath); err == nil && !info.IsDir() {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return cwd
}
