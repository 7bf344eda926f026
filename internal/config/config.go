package config

import (
	"log"
	"time"

	"jobmail/pkg/config"
)

// PipelineConfig 摄取流水线配置
type PipelineConfig struct {
	Concurrency int           `yaml:"concurrency"`
	DedupTTL    time.Duration `yaml:"dedup_ttl"`
}

// ScorerConfig 为空时使用内置词表
type ScorerConfig struct {
	ApplicationWords []string `yaml:"application_words"`
	NonRelevantWords []string `yaml:"non_relevant_words"`
}

// OutboxConfig outbox 分发配置
type OutboxConfig struct {
	Interval   time.Duration `yaml:"interval"`
	BatchSize  int           `yaml:"batch_size"`
	MaxRetries int           `yaml:"max_retries"`
}

// WorkerConfig 统计重算消费者配置
type WorkerConfig struct {
	Queue      string        `yaml:"queue"`
	MaxRetries int64         `yaml:"max_retries"`
	RetryTTL   time.Duration `yaml:"retry_ttl"`
}

type Config struct {
	Env      string              `yaml:"-"`
	DB       config.DBConfig     `yaml:"db"`
	MQ       config.MQConfig     `yaml:"mq"`
	Redis    config.RedisConfig  `yaml:"redis"`
	JWT      config.JWTConfig    `yaml:"jwt"`
	Server   config.ServerConfig `yaml:"server"`
	LLM      config.LLMConfig    `yaml:"llm"`
	Gmail    config.GmailConfig  `yaml:"gmail"`
	Pipeline PipelineConfig      `yaml:"pipeline"`
	Scorer   ScorerConfig        `yaml:"scorer"`
	Outbox   OutboxConfig        `yaml:"outbox"`
	Worker   WorkerConfig        `yaml:"worker"`
}

// DefaultEnv CONFIG_ENV，默认 local
func DefaultEnv() string {
	return config.GetConfigEnv()
}

// DefaultDir CONFIG_DIR，默认 config
func DefaultDir() string {
	return config.GetEnv("CONFIG_DIR", "config")
}

// Load 使用 CONFIG_ENV / CONFIG_DIR 加载配置，失败直接退出
func Load() *Config {
	cfg, err := LoadFrom(DefaultEnv(), DefaultDir())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// LoadFrom 合并 base.yaml 和环境配置，再用环境变量覆盖
func LoadFrom(env, dir string) (*Config, error) {
	cfgMap, err := config.LoadConfig(env, dir)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := config.Decode(cfgMap, &cfg); err != nil {
		return nil, err
	}
	cfg.Env = env

	// 环境变量覆盖（优先级最高）
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideLLMFromEnv(&cfg.LLM)

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":3000"
	}
	if cfg.Pipeline.DedupTTL <= 0 {
		cfg.Pipeline.DedupTTL = 24 * time.Hour
	}
	if cfg.Outbox.Interval <= 0 {
		cfg.Outbox.Interval = time.Second
	}
	if cfg.Worker.Queue == "" {
		cfg.Worker.Queue = "application.recorded.stats.q"
	}
	if cfg.Worker.RetryTTL <= 0 {
		cfg.Worker.RetryTTL = time.Hour
	}
}
