package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// 持久化后端
const (
	PersistenceMemory   = "memory"
	PersistenceSQLite   = "sqlite"
	PersistencePostgres = "postgres"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	Skill     SkillConfig
	Storage   StorageConfig
	Telemetry TelemetryConfig
	Companion CompanionConfig
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
	Addr string
}

// SkillConfig 描述技能路由相关配置。
type SkillConfig struct {
	WebAppOrigin       string `env:"WEBAPP_ORIGIN"`
	StrictInterceptors bool   `env:"SKILL_INTERCEPTOR_STRICT" envDefault:"false"`
}

// StorageConfig 描述持久化属性的存储后端。
type StorageConfig struct {
	Persistence string `env:"SKILL_PERSISTENCE" envDefault:"memory"`
	SQLitePath  string `env:"SKILL_SQLITE_PATH" envDefault:"skill.db"`
	PostgresURL string `env:"SKILL_POSTGRES_URL"`
}

// TelemetryConfig 描述链路追踪配置。
type TelemetryConfig struct {
	Enabled  bool   `env:"SKILL_OTEL_ENABLED" envDefault:"false"`
	Endpoint string `env:"SKILL_OTEL_ENDPOINT"`
}

// CompanionConfig 描述浏览器侧伴随进程的配置。
type CompanionConfig struct {
	ServerURL     string        `env:"COMPANION_SERVER_URL" envDefault:"ws://localhost:8080/api/skill/ws"`
	FlushInterval time.Duration `env:"COMPANION_FLUSH_INTERVAL" envDefault:"1s"`
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	addr, err := normalizeAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr
	cfg.Skill.WebAppOrigin = normalizeOrigin(cfg.Skill.WebAppOrigin)

	if err := cfg.Storage.validate(); err != nil {
		return nil, err
	}
	if cfg.Companion.FlushInterval <= 0 {
		return nil, fmt.Errorf("invalid COMPANION_FLUSH_INTERVAL value: %s", cfg.Companion.FlushInterval)
	}

	return &cfg, nil
}

// normalizeAddr 解析服务器监听地址。
func normalizeAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// normalizeOrigin 补全 WEBAPP_ORIGIN 的协议，只给域名时默认 https。
func normalizeOrigin(origin string) string {
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if origin == "" {
		return ""
	}
	if strings.HasPrefix(origin, "https://") || strings.HasPrefix(origin, "http://") {
		return origin
	}
	return "https://" + origin
}

func (c *StorageConfig) validate() error {
	c.Persistence = strings.ToLower(strings.TrimSpace(c.Persistence))
	switch c.Persistence {
	case PersistenceMemory:
	case PersistenceSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SKILL_SQLITE_PATH is required when SKILL_PERSISTENCE=sqlite")
		}
	case PersistencePostgres:
		if strings.TrimSpace(c.PostgresURL) == "" {
			return fmt.Errorf("SKILL_POSTGRES_URL is required when SKILL_PERSISTENCE=postgres")
		}
	default:
		return fmt.Errorf("invalid SKILL_PERSISTENCE value: %q", c.Persistence)
	}
	return nil
}
