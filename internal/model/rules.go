package model

import "encoding/json"

// RuleMode 规则响应哪种插拔动作
type RuleMode string

const (
	ModeInsert RuleMode = "insert"
	ModeRemove RuleMode = "remove"
	ModeAny    RuleMode = "any"
)

// RuleAction 触发后执行的动作
type RuleAction string

const (
	RuleActionLock     RuleAction = "lock"
	RuleActionShutdown RuleAction = "shutdown"
	RuleActionWipe     RuleAction = "wipe"
	RuleActionCommand  RuleAction = "command"
)

// DeviceRule 针对单个设备的触发规则
// vid/pid/serial 为空表示该字段通配
type DeviceRule struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	VendorID      string     `json:"vid"`
	ProductID     string     `json:"pid"`
	Serial        string     `json:"serial"`
	Mode          RuleMode   `json:"mode"`
	Action        RuleAction `json:"action"`
	CustomCommand string     `json:"custom_cmd"`
	WipeTarget    string     `json:"wipe_target"`
	TestMode      bool       `json:"test_mode"`
	Active        bool       `json:"active"`
}

// GlobalRule 全局规则，对任何设备生效，没有通配概念
type GlobalRule struct {
	Active        bool       `json:"active"`
	Mode          RuleMode   `json:"mode"`
	Action        RuleAction `json:"action"`
	CustomCommand string     `json:"custom_cmd"`
	WipeTarget    string     `json:"wipe_target"`
	TestMode      bool       `json:"test_mode"`
}

// DefaultGlobalRule 配置文件缺少 global_rules 时的兜底值
// test_mode 默认为 true，避免新安装误触发破坏性动作
func DefaultGlobalRule() GlobalRule {
	return GlobalRule{
		Active:   false,
		Mode:     ModeAny,
		Action:   RuleActionLock,
		TestMode: true,
	}
}

// UnmarshalJSON 在解码时一次性补默认值，之后的代码不再做字段兜底
func (g *GlobalRule) UnmarshalJSON(b []byte) error {
	type alias GlobalRule
	tmp := alias(DefaultGlobalRule())
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*g = GlobalRule(tmp)
	return nil
}

func (d *DeviceRule) UnmarshalJSON(b []byte) error {
	type alias DeviceRule
	// 设备规则历史默认: mode=insert, test_mode=true, active=false
	tmp := alias{Mode: ModeInsert, Action: RuleActionLock, TestMode: true}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*d = DeviceRule(tmp)
	return nil
}

// ModeMatches 规则 mode 是否覆盖该插拔动作
func ModeMatches(mode RuleMode, action EventAction) bool {
	switch mode {
	case ModeAny:
		return action == ActionInsert || action == ActionRemove
	case ModeInsert:
		return action == ActionInsert
	case ModeRemove:
		return action == ActionRemove
	}
	return false
}
