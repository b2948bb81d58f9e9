package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Hara602/duressGuard/internal/audit"
	"github.com/Hara602/duressGuard/internal/config"
	"github.com/Hara602/duressGuard/internal/control"
	"github.com/Hara602/duressGuard/internal/dispatch"
	"github.com/Hara602/duressGuard/internal/engine"
	"github.com/Hara602/duressGuard/internal/rulestore"
	"github.com/Hara602/duressGuard/internal/sysutil"
	"github.com/Hara602/duressGuard/internal/watcher"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "daemon config file (YAML), empty = built-in defaults")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// 初始化日志
	sysutil.InitLogger(cfg.LogLevel, cfg.Sockets.LogStream)
	defer sysutil.Log.Sync()

	// Netlink uevent 套接字需要 Root 权限
	if os.Geteuid() != 0 {
		sysutil.LogSugar.Fatal("Must run as root (required by Netlink uevent socket).")
	}

	sysutil.Log.Info("🛡️ Duress Guard Daemon Starting...")

	// 规则文档读不出来就直接退出: 带着未知规则运行比拒绝启动更危险
	store := rulestore.New(cfg.RulesPath)
	deviceRules, global, err := store.Load()
	if err != nil {
		sysutil.Log.Fatal("Rules document unreadable", zap.Error(err), zap.String("path", cfg.RulesPath))
	}
	state := engine.NewDaemonState(store, deviceRules, global)

	var journal *audit.Journal
	if cfg.Audit.Enabled {
		journal, err = audit.Open(cfg.Audit.Path)
		if err != nil {
			// 审计只是观测，打不开不拦启动
			sysutil.Log.Warn("Audit journal disabled", zap.Error(err))
			journal = nil
		} else {
			defer journal.Close()
		}
	}

	dispatcher := dispatch.New(cfg.Helpers, cfg.CommandTimeout, nil)
	eng := engine.NewEngine(state, dispatcher, journal)

	// 控制协议服务 (GUI 侧)
	ctrl := control.New(state, cfg.Sockets)
	if err := ctrl.Start(); err != nil {
		sysutil.Log.Fatal("Control server init failed", zap.Error(err))
	}
	defer ctrl.Stop()

	// 热插拔监听
	devWatcher := watcher.New(cfg.EventBuffer)
	usbEvents, err := devWatcher.Start()
	if err != nil {
		sysutil.Log.Fatal("Watcher init failed", zap.Error(err))
	}
	defer devWatcher.Stop()

	sysutil.Log.Info("👀 Monitoring USB events...", zap.Int("rules", len(deviceRules)))

	// 捕获操作系统信号，优雅关闭
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case ev := <-usbEvents:
			eng.HandleEvent(ev)

		case <-sigCh:
			sysutil.Log.Info("Shutting down...")
			return
		}
	}
}
