package watcher

import (
	"strings"

	"github.com/Hara602/duressGuard/internal/model"
)

// sysfsReader 从 sysfs 设备树补齐标识字段，读不到返回空串
// 抽成函数类型方便测试替换
type sysfsReader func(devPath string) (vid, pid, serial string)

// normalizeUEvent 把原始 uevent 规范化为 UsbEvent
// 返回 false 表示该通知应当丢弃
func normalizeUEvent(action string, env map[string]string, readSysfs sysfsReader) (model.UsbEvent, bool) {
	// 一次物理插拔内核会发一串子设备通知 (接口、端点、tty...)，
	// 只认顶层 usb_device 节点
	if env["SUBSYSTEM"] != "usb" || env["DEVTYPE"] != "usb_device" {
		return model.UsbEvent{}, false
	}

	var evAction model.EventAction
	switch action {
	case "add":
		evAction = model.ActionInsert
	case "remove":
		evAction = model.ActionRemove
	default:
		// bind/unbind/change 等动作不关心
		return model.UsbEvent{}, false
	}

	vid := env["ID_VENDOR_ID"]
	pid := env["ID_MODEL_ID"]
	serial := env["ID_SERIAL_SHORT"]

	// 属性缺失时回溯 sysfs 设备树 (拔出事件属性经常不全)
	if (vid == "" || pid == "" || serial == "") && readSysfs != nil {
		sv, sp, ss := readSysfs(env["DEVPATH"])
		if vid == "" {
			vid = sv
		}
		if pid == "" {
			pid = sp
		}
		if serial == "" {
			serial = ss
		}
	}

	// 序列号最后退化为内核设备路径，至少是个稳定标识
	if serial == "" {
		serial = env["DEVPATH"]
	}

	ev := model.UsbEvent{
		Action:    evAction,
		VendorID:  strings.ToLower(vid),
		ProductID: strings.ToLower(pid),
		Serial:    serial,
	}
	if !ev.Identified() {
		return model.UsbEvent{}, false
	}
	return ev, true
}
