package model

import "time"

// EventAction 插拔动作 (udev 的 add/remove 规范化之后)
type EventAction string

const (
	ActionInsert EventAction = "insert"
	ActionRemove EventAction = "remove"
)

// UsbEvent 规范化后的 USB 插拔事件
// vid/pid 统一为小写十六进制；serial 尽量取设备序列号，
// 拔出事件拿不到时退化为内核设备路径
type UsbEvent struct {
	Action    EventAction `json:"action"`
	VendorID  string      `json:"vid"`
	ProductID string      `json:"pid"`
	Serial    string      `json:"serial"`
	TimeStamp time.Time   `json:"-"`
}

// Identified 三个标识字段全空的事件无法匹配任何规则，直接丢弃
func (e UsbEvent) Identified() bool {
	return e.VendorID != "" || e.ProductID != "" || e.Serial != ""
}
