package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Ontotext-AD/embedding-model-clients/internal/graphwise"
)

// Provider names accepted by the provider key.
const (
	ProviderGraphwise = "graphwise"
	ProviderOpenAI    = "openai"
	ProviderLocal     = "local"
	ProviderOllama    = "ollama"
)

// Config holds all configuration for the embedding clients.
type Config struct {
	Provider  string          `mapstructure:"provider"`
	Graphwise GraphwiseConfig `mapstructure:"graphwise"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Local     LocalConfig     `mapstructure:"local"`
	Ollama    OllamaConfig    `mapstructure:"ollama"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	API       APIConfig       `mapstructure:"api"`
}

// GraphwiseConfig holds Graphwise Transformer inference service settings.
type GraphwiseConfig struct {
	Address         string        `mapstructure:"address"`
	Model           string        `mapstructure:"model"`
	BatchSizeKiB    int           `mapstructure:"batch_size_kib"`
	ThreadPoolSize  int           `mapstructure:"thread_pool_size"` // -1 = number of CPUs
	AuthSecret      string        `mapstructure:"auth_secret"`
	Dimension       int           `mapstructure:"dimension"` // 0 = ask the service
	PoolIdleTimeout time.Duration `mapstructure:"pool_idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// String returns a safe representation of GraphwiseConfig with the secret masked.
func (c GraphwiseConfig) String() string {
	return fmt.Sprintf("GraphwiseConfig{Address:%s, Model:%s, BatchSizeKiB:%d, ThreadPoolSize:%d, AuthSecret:%s}",
		c.Address, c.Model, c.BatchSizeKiB, c.ThreadPoolSize, maskSecret(c.AuthSecret))
}

// OpenAIConfig holds OpenAI embeddings API settings.
type OpenAIConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"` // 0 = model default
	BaseURL    string `mapstructure:"base_url"`   // empty = api.openai.com
}

// String returns a safe representation of OpenAIConfig with the API key masked.
func (c OpenAIConfig) String() string {
	return fmt.Sprintf("OpenAIConfig{APIKey:%s, Model:%s, Dimensions:%d, BaseURL:%s}",
		maskSecret(c.APIKey), c.Model, c.Dimensions, c.BaseURL)
}

// LocalConfig holds settings of the in-process quantized model.
type LocalConfig struct {
	Model     string `mapstructure:"model"`
	Dimension int    `mapstructure:"dimension"`
}

// OllamaConfig holds Ollama embedding service settings.
type OllamaConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	Dimension int    `mapstructure:"dimension"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	ListenAddr   string `mapstructure:"listen_addr"`
	AuthToken    string `mapstructure:"auth_token"`
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"`
}

// maskSecret shows first 4 + last 4 chars, replacing the middle with asterisks.
func maskSecret(key string) string {
	const visible = 4
	if key == "" {
		return ""
	}
	if len(key) <= visible*2 {
		return "***"
	}
	return key[:visible] + "****" + key[len(key)-visible:]
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(homeDir(), ".embedding-clients"))
	v.AddConfigPath(".")

	// Environment variables: EMBEDDING_CLIENTS_GRAPHWISE_ADDRESS etc.
	v.SetEnvPrefix("EMBEDDING_CLIENTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("openai.api_key", "EMBEDDING_CLIENTS_OPENAI_API_KEY", "OPENAI_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	return decode(v)
}

// LoadFile reads configuration from an explicit file, still honouring
// environment overrides.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix("EMBEDDING_CLIENTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("openai.api_key", "EMBEDDING_CLIENTS_OPENAI_API_KEY", "OPENAI_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return decode(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderGraphwise)

	v.SetDefault("graphwise.address", "localhost:5050")
	v.SetDefault("graphwise.model", graphwise.DefaultModel)
	v.SetDefault("graphwise.batch_size_kib", graphwise.DefaultBatchSizeKiB)
	v.SetDefault("graphwise.thread_pool_size", -1)
	v.SetDefault("graphwise.auth_secret", "")
	v.SetDefault("graphwise.dimension", 0)
	v.SetDefault("graphwise.pool_idle_timeout", 30*time.Second)
	v.SetDefault("graphwise.shutdown_timeout", 5*time.Second)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", "text-embedding-3-small")
	v.SetDefault("openai.dimensions", 0)
	v.SetDefault("openai.base_url", "")

	v.SetDefault("local.model", "sentence-transformers/all-MiniLM-L6-v2")
	v.SetDefault("local.dimension", 384)

	v.SetDefault("ollama.base_url", "http://localhost:11434")
	v.SetDefault("ollama.model", "nomic-embed-text")
	v.SetDefault("ollama.dimension", 768)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("api.listen_addr", ":8080")
	v.SetDefault("api.auth_token", "")
	v.SetDefault("api.max_body_bytes", 8<<20)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings of the selected provider and the shared
// sections. Sections of unselected providers are not checked.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGraphwise:
		if err := c.Graphwise.Validate(); err != nil {
			return err
		}
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" && c.OpenAI.BaseURL == "" {
			return fmt.Errorf("openai.api_key must not be empty")
		}
		if c.OpenAI.Dimensions < 0 {
			return fmt.Errorf("openai.dimensions must be >= 0")
		}
	case ProviderLocal:
		if c.Local.Model == "" {
			return fmt.Errorf("local.model must not be empty")
		}
		if c.Local.Dimension <= 0 {
			return fmt.Errorf("local.dimension must be greater than 0")
		}
	case ProviderOllama:
		if c.Ollama.BaseURL == "" {
			return fmt.Errorf("ollama.base_url must not be empty")
		}
		if c.Ollama.Dimension <= 0 {
			return fmt.Errorf("ollama.dimension must be greater than 0")
		}
	default:
		return fmt.Errorf("provider must be one of graphwise, openai, local, ollama; got %q", c.Provider)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json")
	}
	if c.API.MaxBodyBytes <= 0 {
		return fmt.Errorf("api.max_body_bytes must be greater than 0")
	}
	return nil
}

// Validate checks the Graphwise section, including the address format.
func (g GraphwiseConfig) Validate() error {
	if _, _, err := ParseAddress(g.Address); err != nil {
		return fmt.Errorf("graphwise.address: %w", err)
	}
	if g.Model == "" {
		return fmt.Errorf("graphwise.model must not be empty")
	}
	if g.BatchSizeKiB <= 0 {
		return fmt.Errorf("graphwise.batch_size_kib must be greater than 0")
	}
	if g.ThreadPoolSize == 0 || g.ThreadPoolSize < -1 {
		return fmt.Errorf("graphwise.thread_pool_size must be -1 or greater than 0")
	}
	if g.Dimension < 0 {
		return fmt.Errorf("graphwise.dimension must be >= 0")
	}
	if g.PoolIdleTimeout < 0 || g.ShutdownTimeout < 0 {
		return fmt.Errorf("graphwise timeouts must be >= 0")
	}
	return nil
}

// ParseAddress splits a host:port address and checks the port range.
func ParseAddress(addr string) (host string, port int, err error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("malformed address %q: %w", addr, err)
	}
	if host == "" {
		return "", 0, fmt.Errorf("malformed address %q: missing host", addr)
	}
	port, err = strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("malformed address %q: port is not a number", addr)
	}
	if port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("malformed address %q: port out of range", addr)
	}
	return host, port, nil
}

// ClientConfig converts the Graphwise section into the client's immutable
// configuration. The batch size is given in KiB and becomes a byte budget.
func (g GraphwiseConfig) ClientConfig() (graphwise.Config, error) {
	if err := g.Validate(); err != nil {
		return graphwise.Config{}, err
	}
	host, port, _ := ParseAddress(g.Address)
	return graphwise.Config{
		Host:            host,
		Port:            port,
		Model:           g.Model,
		ByteBudget:      g.BatchSizeKiB * 1024,
		PoolSize:        g.ThreadPoolSize,
		PoolIdleTimeout: g.PoolIdleTimeout,
		Secret:          g.AuthSecret,
		Dimension:       g.Dimension,
		ShutdownTimeout: g.ShutdownTimeout,
	}, nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
