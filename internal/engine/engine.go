package engine

import (
	"github.com/Hara602/duressGuard/internal/audit"
	"github.com/Hara602/duressGuard/internal/dispatch"
	"github.com/Hara602/duressGuard/internal/model"
	"github.com/Hara602/duressGuard/internal/sysutil"
	"go.uber.org/zap"
)

// 被 armed 闸门拦下的派发在审计里的结果值
const outcomeDisarmed = "suppressed_disarmed"

// ActionDispatcher 动作派发器，测试时替换成假实现
type ActionDispatcher interface {
	Dispatch(t dispatch.Trigger) dispatch.Outcome
}

// Engine 事件处理管线: 规则快照 → 匹配 → armed 闸门 → 派发
type Engine struct {
	state      *DaemonState
	dispatcher ActionDispatcher
	journal    *audit.Journal
}

func NewEngine(state *DaemonState, dispatcher ActionDispatcher, journal *audit.Journal) *Engine {
	return &Engine{state: state, dispatcher: dispatcher, journal: journal}
}

// HandleEvent 处理一条规范化事件
// 顺序保证: 全局规则先于设备规则派发；设备规则按文档顺序派发；
// 本次事件使用进入时取的快照，中途的配置变更只影响后续事件
func (e *Engine) HandleEvent(ev model.UsbEvent) {
	eventID := e.journal.RecordEvent(ev)

	devices, global := e.state.ObserveEvent(ev)

	sysutil.Log.Info("🔌 USB event",
		zap.String("action", string(ev.Action)),
		zap.String("vid", ev.VendorID),
		zap.String("pid", ev.ProductID),
		zap.String("serial", ev.Serial),
	)

	if GlobalMatches(global, ev) {
		e.fire(eventID, dispatch.Trigger{
			RuleName:      "GLOBAL-RULE",
			Action:        global.Action,
			TestMode:      global.TestMode,
			CustomCommand: global.CustomCommand,
			WipeTarget:    global.WipeTarget,
			Event:         ev,
		})
	}

	for _, rule := range MatchingDevices(devices, ev) {
		e.fire(eventID, dispatch.Trigger{
			RuleName:      rule.Name,
			Action:        rule.Action,
			TestMode:      rule.TestMode,
			CustomCommand: rule.CustomCommand,
			WipeTarget:    rule.WipeTarget,
			Event:         ev,
		})
	}
}

// fire armed 闸门在每次派发前单独查一次，拦下就只记日志，没有延迟触发
func (e *Engine) fire(eventID string, t dispatch.Trigger) {
	if !e.state.Armed() {
		sysutil.Log.Info("Rule matched but system DISARMED", zap.String("rule", t.RuleName))
		e.journal.RecordDispatch(eventID, t.RuleName, t.Action, outcomeDisarmed)
		return
	}
	outcome := e.dispatcher.Dispatch(t)
	e.journal.RecordDispatch(eventID, t.RuleName, t.Action, string(outcome))
}
