package engine

import (
	"strings"

	"github.com/Hara602/duressGuard/internal/model"
)

// 匹配逻辑是纯函数，只看规则快照和事件，没有副作用

// GlobalMatches 全局规则: 只看启用位和 mode，对所有设备生效
func GlobalMatches(global model.GlobalRule, ev model.UsbEvent) bool {
	return global.Active && model.ModeMatches(global.Mode, ev.Action)
}

// DeviceMatches 设备规则: 非空字段必须相等 (vid/pid 忽略大小写)，空字段通配
// 事件侧解析不出来的字段是空串，匹配不了任何要求该字段的规则 —— 不做通配提升
func DeviceMatches(rule model.DeviceRule, ev model.UsbEvent) bool {
	if !rule.Active {
		return false
	}
	if !model.ModeMatches(rule.Mode, ev.Action) {
		return false
	}
	if rule.VendorID != "" && !strings.EqualFold(rule.VendorID, ev.VendorID) {
		return false
	}
	if rule.ProductID != "" && !strings.EqualFold(rule.ProductID, ev.ProductID) {
		return false
	}
	if rule.Serial != "" && rule.Serial != ev.Serial {
		return false
	}
	return true
}

// MatchingDevices 按规则文档顺序返回所有命中的设备规则，不是命中即止
func MatchingDevices(devices []model.DeviceRule, ev model.UsbEvent) []model.DeviceRule {
	var matched []model.DeviceRule
	for _, rule := range devices {
		if DeviceMatches(rule, ev) {
			matched = append(matched, rule)
		}
	}
	return matched
}
