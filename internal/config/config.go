package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 守护进程自身的运行配置 (YAML)
// 注意: 触发规则不在这里，规则文档由 rulestore 单独管理
type Config struct {
	LogLevel       string        `yaml:"log_level"`
	RulesPath      string        `yaml:"rules_path"`
	Sockets        SocketConfig  `yaml:"sockets"`
	Helpers        HelperConfig  `yaml:"helpers"`
	Audit          AuditConfig   `yaml:"audit"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
	EventBuffer    int           `yaml:"event_buffer"`
}

type SocketConfig struct {
	// 命令套接字: GUI → daemon 的请求通道
	Command string `yaml:"command"`
	// 应答套接字: daemon → GUI 的响应通道 (GUI 可能不在线)
	Reply string `yaml:"reply"`
	// 日志推送套接字，空表示关闭
	LogStream string `yaml:"log_stream"`
}

type HelperConfig struct {
	LockScript  string   `yaml:"lock_script"`
	WipeScript  string   `yaml:"wipe_script"`
	PoweroffCmd []string `yaml:"poweroff_cmd"`
}

type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		RulesPath: "/etc/duressguard/rules.json",
		Sockets: SocketConfig{
			Command:   "/tmp/luks-duress.sock",
			Reply:     "/tmp/luks-duress_gui",
			LogStream: "/tmp/luks-duress_log",
		},
		Helpers: HelperConfig{
			LockScript:  "/usr/local/libexec/duressguard/lock-screen.sh",
			WipeScript:  "/usr/local/libexec/duressguard/wipe-header.sh",
			PoweroffCmd: []string{"systemctl", "poweroff"},
		},
		Audit: AuditConfig{
			Enabled: true,
			Path:    "/var/lib/duressguard/audit.db",
		},
		// custom command 的执行上限，0 表示不限制
		CommandTimeout: 30 * time.Second,
		EventBuffer:    10,
	}
}

func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	// 拒绝未知键: 守护进程的配置键写错了不该静默退回默认值
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.RulesPath == "" {
		cfg.RulesPath = def.RulesPath
	}
	if cfg.Sockets.Command == "" {
		cfg.Sockets.Command = def.Sockets.Command
	}
	if cfg.Sockets.Reply == "" {
		cfg.Sockets.Reply = def.Sockets.Reply
	}
	if len(cfg.Helpers.PoweroffCmd) == 0 {
		cfg.Helpers.PoweroffCmd = def.Helpers.PoweroffCmd
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = def.EventBuffer
	}
	if cfg.Audit.Enabled && cfg.Audit.Path == "" {
		cfg.Audit.Path = def.Audit.Path
	}
}

func Validate(cfg *Config) error {
	if cfg.Sockets.Command == cfg.Sockets.Reply {
		return errors.New("sockets.command and sockets.reply must differ")
	}
	if cfg.CommandTimeout < 0 {
		return errors.New("command_timeout must be >= 0")
	}
	return nil
}
