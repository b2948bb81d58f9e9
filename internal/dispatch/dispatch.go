package dispatch

import (
	"context"
	"os/exec"
	"time"

	"github.com/Hara602/duressGuard/internal/config"
	"github.com/Hara602/duressGuard/internal/model"
	"github.com/Hara602/duressGuard/internal/sysutil"
	"go.uber.org/zap"
)

// Trigger 一条命中的规则加上触发它的事件，由 engine 构造
type Trigger struct {
	RuleName      string
	Action        model.RuleAction
	TestMode      bool
	CustomCommand string
	WipeTarget    string
	Event         model.UsbEvent
}

// Outcome 单次派发的结果，只用于日志和审计，不是错误
type Outcome string

const (
	OutcomeExecuted Outcome = "executed"
	OutcomeTestMode Outcome = "suppressed_test_mode"
	OutcomeAborted  Outcome = "aborted"
)

// Runner 外部进程执行器，测试时替换成假实现
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
	Shell(ctx context.Context, command string) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

func (execRunner) Shell(ctx context.Context, command string) error {
	return exec.CommandContext(ctx, "/bin/sh", "-c", command).Run()
}

// Dispatcher 把命中的规则落到真实动作上
// 任何失败只记日志并吞掉，绝不把错误抛回热插拔处理路径
type Dispatcher struct {
	runner  Runner
	helpers config.HelperConfig
	timeout time.Duration
}

// New 创建派发器，runner 传 nil 时使用真实的进程执行器
func New(helpers config.HelperConfig, timeout time.Duration, runner Runner) *Dispatcher {
	if runner == nil {
		runner = execRunner{}
	}
	return &Dispatcher{runner: runner, helpers: helpers, timeout: timeout}
}

// Dispatch 执行动作
// 前提: 调用方已经过了 armed 闸门；test_mode 在这里检查 (必须晚于闸门)
func (d *Dispatcher) Dispatch(t Trigger) Outcome {
	sysutil.Log.Info("🔥 Rule triggered",
		zap.String("rule", t.RuleName),
		zap.String("action", string(t.Action)),
		zap.String("event", string(t.Event.Action)),
		zap.String("serial", t.Event.Serial),
	)

	if t.TestMode {
		sysutil.Log.Warn("TEST MODE — action suppressed", zap.String("rule", t.RuleName))
		return OutcomeTestMode
	}

	switch t.Action {
	case model.RuleActionLock:
		d.runLock(t)
	case model.RuleActionShutdown:
		d.runShutdown()
	case model.RuleActionWipe:
		return d.runWipe(t)
	case model.RuleActionCommand:
		return d.runCommand(t)
	default:
		sysutil.Log.Error("Unknown rule action", zap.String("action", string(t.Action)))
		return OutcomeAborted
	}
	return OutcomeExecuted
}

func (d *Dispatcher) runLock(t Trigger) {
	ctx, cancel := d.execContext()
	defer cancel()
	if err := d.runner.Run(ctx, d.helpers.LockScript); err != nil {
		sysutil.Log.Error("Lock helper failed", zap.Error(err))
	}
}

// runShutdown 关机是自毁式的，不等确认，进程会被关机流程带走
func (d *Dispatcher) runShutdown() {
	cmd := d.helpers.PoweroffCmd
	if len(cmd) == 0 {
		sysutil.Log.Error("No poweroff command configured")
		return
	}
	go func() {
		if err := d.runner.Run(context.Background(), cmd[0], cmd[1:]...); err != nil {
			sysutil.Log.Error("Poweroff failed", zap.Error(err))
		}
	}()
}

func (d *Dispatcher) runWipe(t Trigger) Outcome {
	if t.WipeTarget == "" {
		// 绝不隐式挑选擦除目标
		sysutil.Log.Error("WIPE requested but no wipe target configured", zap.String("rule", t.RuleName))
		return OutcomeAborted
	}
	if !isBlockDevice(t.WipeTarget) {
		// 目标校验交给 wipe 脚本兜底，这里只提醒
		sysutil.Log.Warn("Wipe target is not a block device", zap.String("target", t.WipeTarget))
	}
	ctx, cancel := d.execContext()
	defer cancel()
	sysutil.Log.Warn("💣 WIPE dispatching", zap.String("target", t.WipeTarget))
	if err := d.runner.Run(ctx, d.helpers.WipeScript, t.WipeTarget); err != nil {
		sysutil.Log.Error("Wipe helper failed", zap.Error(err))
	}
	return OutcomeExecuted
}

func (d *Dispatcher) runCommand(t Trigger) Outcome {
	if t.CustomCommand == "" {
		sysutil.Log.Error("Command action with empty custom command", zap.String("rule", t.RuleName))
		return OutcomeAborted
	}
	ctx, cancel := d.execContext()
	defer cancel()
	if err := d.runner.Shell(ctx, t.CustomCommand); err != nil {
		sysutil.Log.Error("Custom command failed", zap.Error(err))
	}
	return OutcomeExecuted
}

// execContext 给外部进程一个有界的执行窗口，timeout=0 表示不限制
func (d *Dispatcher) execContext() (context.Context, context.CancelFunc) {
	if d.timeout > 0 {
		return context.WithTimeout(context.Background(), d.timeout)
	}
	return context.WithCancel(context.Background())
}
