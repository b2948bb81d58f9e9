package engine

import (
	"errors"
	"sync"

	"github.com/Hara602/duressGuard/internal/model"
	"github.com/Hara602/duressGuard/internal/rulestore"
)

var ErrNotFound = errors.New("device rule not found")

// DaemonState 两个长驻循环 (热插拔管线 / 控制协议) 共享的全部可变状态
// 一把锁管到底: 规则、armed、lastEvent 的读写都串行化
//
// armed 每次进程启动都是 false，刻意不持久化 —— 服务永不自动上膛
type DaemonState struct {
	mu sync.Mutex

	store   *rulestore.Store
	devices []model.DeviceRule
	global  model.GlobalRule

	armed     bool
	lastEvent *model.UsbEvent
}

func NewDaemonState(store *rulestore.Store, devices []model.DeviceRule, global model.GlobalRule) *DaemonState {
	if devices == nil {
		devices = []model.DeviceRule{}
	}
	return &DaemonState{store: store, devices: devices, global: global}
}

func (s *DaemonState) Arm() {
	s.mu.Lock()
	s.armed = true
	s.mu.Unlock()
}

func (s *DaemonState) Disarm() {
	s.mu.Lock()
	s.armed = false
	s.mu.Unlock()
}

func (s *DaemonState) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

// ObserveEvent 记录 lastEvent 并取走一份规则快照，两者在同一临界区完成
// lastEvent 无条件更新，和是否命中规则无关 (GUI 靠它读回最近一次插拔)
func (s *DaemonState) ObserveEvent(ev model.UsbEvent) ([]model.DeviceRule, model.GlobalRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := ev
	s.lastEvent = &copied
	return s.snapshotLocked()
}

func (s *DaemonState) LastEvent() (model.UsbEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastEvent == nil {
		return model.UsbEvent{}, false
	}
	return *s.lastEvent, true
}

// Devices 返回设备规则副本
func (s *DaemonState) Devices() []model.DeviceRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	devices, _ := s.snapshotLocked()
	return devices
}

func (s *DaemonState) Global() model.GlobalRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.global
}

// SetGlobal 更新全局规则并同步落盘
// 保存失败时内存保持新值 (与调用方意图一致)，错误交给调用方记录
func (s *DaemonState) SetGlobal(global model.GlobalRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.global = global
	return s.saveLocked()
}

// UpsertDevice 按 id 覆盖或追加 —— id 冲突时静默覆盖是 GUI 依赖的语义
func (s *DaemonState) UpsertDevice(dev model.DeviceRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices = rulestore.Upsert(s.devices, dev)
	return s.saveLocked()
}

// UpdateDevice 只更新已存在的条目
func (s *DaemonState) UpdateDevice(dev model.DeviceRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, d := range s.devices {
		if d.ID == dev.ID {
			s.devices[i] = dev
			return s.saveLocked()
		}
	}
	return ErrNotFound
}

func (s *DaemonState) DeleteDevice(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	devices, ok := rulestore.Delete(s.devices, id)
	if !ok {
		return ErrNotFound
	}
	s.devices = devices
	return s.saveLocked()
}

// SetDeviceActive 单独翻转某条规则的启用位
func (s *DaemonState) SetDeviceActive(id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.devices {
		if s.devices[i].ID == id {
			s.devices[i].Active = active
			return s.saveLocked()
		}
	}
	return ErrNotFound
}

func (s *DaemonState) snapshotLocked() ([]model.DeviceRule, model.GlobalRule) {
	devices := make([]model.DeviceRule, len(s.devices))
	copy(devices, s.devices)
	return devices, s.global
}

func (s *DaemonState) saveLocked() error {
	if s.store == nil {
		return nil
	}
	return s.store.Save(s.devices, s.global)
}
