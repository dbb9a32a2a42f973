package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// DefaultAPIURL 是未配置 API_URL 时使用的本地后端地址。
const DefaultAPIURL = "http://127.0.0.1:8000"

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	Backend BackendConfig
	Profile ProfileConfig
	Session SessionConfig
	Reveal  RevealConfig
	Log     LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	backend, err := loadBackendConfig()
	if err != nil {
		return nil, err
	}

	var rest struct {
		Profile ProfileConfig
		Session SessionConfig
		Reveal  RevealConfig
		Log     LogConfig
	}
	if err := env.Parse(&rest); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if rest.Reveal.Scale < 0 {
		rest.Reveal.Scale = 0
	}
	if rest.Reveal.ThinkingDelay < 0 {
		rest.Reveal.ThinkingDelay = 0
	}
	if rest.Session.IdleTTL < 0 {
		rest.Session.IdleTTL = 0
	}

	return &Config{
		Server:  server,
		Backend: backend,
		Profile: rest.Profile,
		Session: rest.Session,
		Reveal:  rest.Reveal,
		Log:     rest.Log,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
	Port string `env:"PORT" envDefault:"8080"`
	// AllowedOrigins 是允许嵌入组件的来源，"*" 表示任意来源；为空时只接受同源请求。
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("parse server config: %w", err)
	}

	origins := make([]string, 0, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}

	port := strings.TrimSpace(cfg.Port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, Port: port, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, Port: port, AllowedOrigins: origins}, nil
}

// BackendConfig 描述 AI 接待员后端的访问方式。
type BackendConfig struct {
	APIURL string `env:"API_URL"`
	// NEXT_PUBLIC_API_URL 兼容前端时代的变量名。
	PublicAPIURL string `env:"NEXT_PUBLIC_API_URL"`
}

// BaseURL 返回去掉末尾斜杠的后端地址。
func (c BackendConfig) BaseURL() string {
	return strings.TrimRight(c.APIURL, "/")
}

func loadBackendConfig() (BackendConfig, error) {
	var cfg BackendConfig
	if err := env.Parse(&cfg); err != nil {
		return BackendConfig{}, fmt.Errorf("parse backend config: %w", err)
	}

	raw := strings.TrimSpace(cfg.APIURL)
	if raw == "" {
		raw = strings.TrimSpace(cfg.PublicAPIURL)
	}
	if raw == "" {
		raw = DefaultAPIURL
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return BackendConfig{}, fmt.Errorf("invalid API_URL value: %q", raw)
	}

	cfg.APIURL = raw
	return cfg, nil
}

// ProfileConfig 控制个性化信息的持久化位置；为空时仅保存在内存中。
type ProfileConfig struct {
	DBPath string `env:"PROFILE_DB_PATH"`
}

// SessionConfig 控制会话在内存中的保留时间。
type SessionConfig struct {
	// IdleTTL 之后无人使用的会话会被回收，0 表示永不回收。
	IdleTTL time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`
}

// RevealConfig 控制打字效果的节奏。
type RevealConfig struct {
	// Scale 乘以语气对应的延迟，0 表示关闭节奏控制。
	Scale         float64       `env:"REVEAL_SCALE" envDefault:"1"`
	ThinkingDelay time.Duration `env:"THINKING_DELAY" envDefault:"400ms"`
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
	Dev   bool   `env:"LOG_DEV" envDefault:"false"`
}
