package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"spurly/generator"
)

// Config is the whole service configuration.
type Config struct {
	ServerAddr string           `yaml:"server_addr"`
	LLM        *LLMConfig       `yaml:"llm"`
	Store      StoreConfig      `yaml:"store"`
	Generation generator.Config `yaml:"generation"`
}

// LLMConfig 选择生成模型，provider 为 openai / deepseek / mock。
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver   string `yaml:"driver"` // memory | sqlite
	Path     string `yaml:"path"`
	Fixtures string `yaml:"fixtures"`
}

// Default returns a config that runs offline against the mock model and memory store.
func Default() Config {
	return Config{
		ServerAddr: ":8080",
		LLM:        &LLMConfig{Provider: "mock"},
		Store:      StoreConfig{Driver: "memory", Path: "spurly.db"},
		Generation: generator.DefaultConfig(),
	}
}

// Load decodes the YAML file at path over Default, then applies .env and the
// environment. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrap(err, "parse config")
		}
	}
	_ = godotenv.Load()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if c.LLM == nil {
		c.LLM = &LLMConfig{}
	}
	setFromEnv(&c.LLM.APIKey, "OPENAI_API_KEY")
	setFromEnv(&c.LLM.Model, "SPURLY_LLM_MODEL")
	setFromEnv(&c.LLM.BaseURL, "SPURLY_LLM_BASE_URL")
	setFromEnv(&c.ServerAddr, "SPURLY_SERVER_ADDR")
	setFromEnv(&c.Store.Path, "SPURLY_STORE_PATH")
}

func setFromEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// Validate checks the sections that cannot be fixed by defaults.
func (c Config) Validate() error {
	if c.LLM == nil || c.LLM.Provider == "" {
		return errors.New("llm config missing; please set llm.provider")
	}
	switch c.LLM.Provider {
	case "openai", "mock":
	case "deepseek":
		// DeepSeek 提供 OpenAI 兼容接口，需填写 base_url。
		if c.LLM.BaseURL == "" {
			return errors.New("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
	default:
		return errors.Errorf("llm provider %s not supported", c.LLM.Provider)
	}
	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return errors.New("store driver sqlite requires path")
		}
	default:
		return errors.Errorf("store driver %q not supported", c.Store.Driver)
	}
	return errors.Wrap(c.Generation.Validate(), "generation")
}

// Settings converts the llm section for the generator's client constructor.
func (c Config) Settings() *generator.LLMSettings {
	return &generator.LLMSettings{
		Provider: c.LLM.Provider,
		Model:    c.LLM.Model,
		APIKey:   c.LLM.APIKey,
		BaseURL:  c.LLM.BaseURL,
	}
}
