package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix 是环境变量覆盖配置时使用的前缀，例如 STACKSCREW_LLM_PROVIDER。
const EnvPrefix = "STACKSCREW"

// Config 描述了 crew 服务启动阶段需要加载的全部配置。
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	LLM          LLMConfig          `mapstructure:"llm"`
	Crew         CrewConfig         `mapstructure:"crew"`
	Scraper      ScraperConfig      `mapstructure:"scraper"`
	TestPatterns TestPatternsConfig `mapstructure:"test_patterns"`
	Knowledge    KnowledgeConfig    `mapstructure:"knowledge"`
	Storage      StorageConfig      `mapstructure:"storage"`
	RunQueue     RunQueueConfig     `mapstructure:"run_queue"`
	Proofs       ProofsConfig       `mapstructure:"proofs"`
	Log          LogConfig          `mapstructure:"log"`
}

// ServerConfig 控制 HTTP API 的监听地址与认证。
type ServerConfig struct {
	Address      string     `mapstructure:"address"`
	AllowOrigins []string   `mapstructure:"allow_origins"`
	Auth         AuthConfig `mapstructure:"auth"`
}

// AuthConfig 配置 API bearer token，mode 为 disabled 或 token。
type AuthConfig struct {
	Mode   string            `mapstructure:"mode"`
	Tokens []AuthTokenConfig `mapstructure:"tokens"`
}

// AuthTokenConfig 描述一个 token，token 与 token_sha256 二选一。
type AuthTokenConfig struct {
	Name        string   `mapstructure:"name"`
	Token       string   `mapstructure:"token"`
	TokenSHA256 string   `mapstructure:"token_sha256"`
	Permissions []string `mapstructure:"permissions"`
}

// LLMConfig 选择大模型 provider 并提供对应参数。
type LLMConfig struct {
	Provider       string       `mapstructure:"provider"`
	TimeoutSeconds int          `mapstructure:"timeout_seconds"`
	OpenAI         OpenAIConfig `mapstructure:"openai"`
	Gemini         GeminiConfig `mapstructure:"gemini"`
}

// OpenAIConfig 描述 Chat Completions 接口的调用参数。
type OpenAIConfig struct {
	APIKey    string `mapstructure:"api_key"`
	APIKeyEnv string `mapstructure:"api_key_env"`
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
}

// GeminiConfig 描述 Gemini API 的调用参数。
type GeminiConfig struct {
	APIKey    string `mapstructure:"api_key"`
	APIKeyEnv string `mapstructure:"api_key_env"`
	Model     string `mapstructure:"model"`
}

// CrewConfig 指向 agents/tasks 的 YAML 定义以及默认输入。
type CrewConfig struct {
	AgentsPath    string            `mapstructure:"agents_path"`
	TasksPath     string            `mapstructure:"tasks_path"`
	MaxIterations int               `mapstructure:"max_iterations"`
	DefaultInputs map[string]string `mapstructure:"default_inputs"`
}

// ScraperConfig 控制 Clarity 文档抓取。
type ScraperConfig struct {
	BookBaseURL         string   `mapstructure:"book_base_url"`
	DocURLs             []string `mapstructure:"doc_urls"`
	FetchTimeoutSeconds int      `mapstructure:"fetch_timeout_seconds"`
	UserAgent           string   `mapstructure:"user_agent"`
}

// TestPatternsConfig 控制测试生成器是否在线抓取 Clarinet SDK 文档。
type TestPatternsConfig struct {
	Live                bool     `mapstructure:"live"`
	URLs                []string `mapstructure:"urls"`
	FetchTimeoutSeconds int      `mapstructure:"fetch_timeout_seconds"`
}

// KnowledgeConfig 指向可选的静态知识库文件。
type KnowledgeConfig struct {
	Source     string `mapstructure:"source"`
	MaxResults int    `mapstructure:"max_results"`
}

// StorageConfig 描述运行记录的存储后端。
type StorageConfig struct {
	RunStore RunStoreConfig `mapstructure:"run_store"`
}

// RunStoreConfig 支持 memory 与 mysql 两种驱动。
type RunStoreConfig struct {
	Driver                 string `mapstructure:"driver"`
	DSN                    string `mapstructure:"dsn"`
	Retries                int    `mapstructure:"retries"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `mapstructure:"conn_max_lifetime_seconds"`
}

// RunQueueConfig 描述运行队列，支持 memory、redis、rabbitmq。
type RunQueueConfig struct {
	Driver            string         `mapstructure:"driver"`
	Worker            int            `mapstructure:"worker"`
	RunTimeoutSeconds int            `mapstructure:"run_timeout_seconds"`
	Redis             RedisConfig    `mapstructure:"redis"`
	RabbitMQ          RabbitMQConfig `mapstructure:"rabbitmq"`
}

// RedisConfig 描述 Redis list 队列。
type RedisConfig struct {
	Address          string `mapstructure:"address"`
	Password         string `mapstructure:"password"`
	DB               int    `mapstructure:"db"`
	Queue            string `mapstructure:"queue"`
	BlockWaitSeconds int    `mapstructure:"block_wait_seconds"`
}

// RabbitMQConfig 描述 RabbitMQ 队列。
type RabbitMQConfig struct {
	URL        string `mapstructure:"url"`
	Queue      string `mapstructure:"queue"`
	Prefetch   int    `mapstructure:"prefetch"`
	Durable    bool   `mapstructure:"durable"`
	AutoDelete bool   `mapstructure:"auto_delete"`
}

// ProofsConfig 控制产物摘要签名。
type ProofsConfig struct {
	SigningKeyHex string `mapstructure:"signing_key_hex"`
	SigningKeyEnv string `mapstructure:"signing_key_env"`
}

// LogConfig 对应 pkg/logger 的配置。
type LogConfig struct {
	Level   string         `mapstructure:"level"`
	Format  string         `mapstructure:"format"`
	Outputs []string       `mapstructure:"outputs"`
	Audit   AuditLogConfig `mapstructure:"audit"`
}

// AuditLogConfig 控制审计日志文件。
type AuditLogConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// Load 解析指定路径的 YAML/JSON 配置文件；path 为空时只使用默认值与环境变量。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	baseDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("获取工作目录失败: %w", err)
	}

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || os.IsNotExist(err) {
				return nil, fmt.Errorf("配置文件不存在: %s", path)
			}
			return nil, fmt.Errorf("解析配置失败: %w", err)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("解析配置路径失败: %w", err)
		}
		baseDir = filepath.Dir(abs)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	cfg.applyDefaults(baseDir)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.allow_origins", []string{"*"})
	v.SetDefault("server.auth.mode", "disabled")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.timeout_seconds", 120)
	v.SetDefault("llm.openai.api_key", "")
	v.SetDefault("llm.openai.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("llm.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.openai.model", "gpt-4o-mini")
	v.SetDefault("llm.gemini.api_key", "")
	v.SetDefault("llm.gemini.api_key_env", "GEMINI_API_KEY")
	v.SetDefault("llm.gemini.model", "gemini-2.0-flash")

	v.SetDefault("crew.agents_path", "")
	v.SetDefault("crew.tasks_path", "")
	v.SetDefault("crew.max_iterations", 6)

	v.SetDefault("scraper.book_base_url", "https://book.clarity-lang.org")
	v.SetDefault("scraper.doc_urls", []string{
		"https://docs.stacks.co/docs/clarity/",
		"https://docs.stacks.co/docs/write-smart-contracts/",
	})
	v.SetDefault("scraper.fetch_timeout_seconds", 5)
	v.SetDefault("scraper.user_agent", "stackscrew/1.0")

	v.SetDefault("test_patterns.live", true)
	v.SetDefault("test_patterns.urls", []string{
		"https://docs.hiro.so/stacks/clarinet-js-sdk/guides/unit-testing",
		"https://docs.hiro.so/stacks/clarinet-js-sdk/guides/integration-testing",
		"https://docs.hiro.so/stacks/clarinet-js-sdk/guides/migrate-to-the-clarinet-sdk",
	})
	v.SetDefault("test_patterns.fetch_timeout_seconds", 10)

	v.SetDefault("knowledge.source", "")
	v.SetDefault("knowledge.max_results", 3)

	v.SetDefault("storage.run_store.driver", "memory")
	v.SetDefault("storage.run_store.dsn", "")
	v.SetDefault("storage.run_store.retries", 3)
	v.SetDefault("storage.run_store.max_open_conns", 20)
	v.SetDefault("storage.run_store.max_idle_conns", 10)
	v.SetDefault("storage.run_store.conn_max_lifetime_seconds", 600)

	v.SetDefault("run_queue.driver", "memory")
	v.SetDefault("run_queue.worker", 2)
	v.SetDefault("run_queue.run_timeout_seconds", 900)
	v.SetDefault("run_queue.redis.address", "")
	v.SetDefault("run_queue.redis.password", "")
	v.SetDefault("run_queue.redis.db", 0)
	v.SetDefault("run_queue.redis.queue", "stackscrew:runs")
	v.SetDefault("run_queue.redis.block_wait_seconds", 5)
	v.SetDefault("run_queue.rabbitmq.url", "")
	v.SetDefault("run_queue.rabbitmq.queue", "stackscrew.runs")
	v.SetDefault("run_queue.rabbitmq.prefetch", 4)
	v.SetDefault("run_queue.rabbitmq.durable", true)
	v.SetDefault("run_queue.rabbitmq.auto_delete", false)

	v.SetDefault("proofs.signing_key_hex", "")
	v.SetDefault("proofs.signing_key_env", "STACKSCREW_SIGNING_KEY")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.outputs", []string{"stderr"})
	v.SetDefault("log.audit.enabled", false)
	v.SetDefault("log.audit.path", "")
	v.SetDefault("log.audit.max_size_mb", 100)
	v.SetDefault("log.audit.max_backups", 7)
}

// applyDefaults 处理 viper 无法表达的默认值：相对路径与 API Key 环境变量。
func (c *Config) applyDefaults(baseDir string) {
	c.Crew.AgentsPath = resolvePath(baseDir, c.Crew.AgentsPath)
	c.Crew.TasksPath = resolvePath(baseDir, c.Crew.TasksPath)
	c.Knowledge.Source = resolvePath(baseDir, c.Knowledge.Source)
	c.Log.Audit.Path = resolvePath(baseDir, c.Log.Audit.Path)

	if c.Crew.MaxIterations <= 0 {
		c.Crew.MaxIterations = 6
	}
	if c.RunQueue.Worker <= 0 {
		c.RunQueue.Worker = 1
	}
	if c.LLM.OpenAI.APIKey == "" && c.LLM.OpenAI.APIKeyEnv != "" {
		c.LLM.OpenAI.APIKey = strings.TrimSpace(os.Getenv(c.LLM.OpenAI.APIKeyEnv))
	}
	if c.LLM.Gemini.APIKey == "" && c.LLM.Gemini.APIKeyEnv != "" {
		c.LLM.Gemini.APIKey = strings.TrimSpace(os.Getenv(c.LLM.Gemini.APIKeyEnv))
	}
	if c.Proofs.SigningKeyHex == "" && c.Proofs.SigningKeyEnv != "" {
		c.Proofs.SigningKeyHex = strings.TrimSpace(os.Getenv(c.Proofs.SigningKeyEnv))
	}
}

func resolvePath(baseDir, p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}
