package rulestore

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Hara602/duressGuard/internal/model"
)

// Store 管理规则文档 (rules.json) 的读写
// 文档是破坏性行为的唯一事实来源: 读不出来就让进程启动失败，
// 绝不能带着空规则集静默运行
type Store struct {
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

// document 磁盘上的文档结构 {devices, global_rules}
type document struct {
	Devices     []model.DeviceRule `json:"devices"`
	GlobalRules *model.GlobalRule  `json:"global_rules"`
}

// Load 读取规则文档，缺失的可选字段在解码时补默认值
func (s *Store) Load() ([]model.DeviceRule, model.GlobalRule, error) {
	content, err := os.ReadFile(s.path)
	if err != nil {
		return nil, model.GlobalRule{}, fmt.Errorf("read rules document: %w", err)
	}
	var doc document
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, model.GlobalRule{}, fmt.Errorf("parse rules document %s: %w", s.path, err)
	}
	if doc.Devices == nil {
		doc.Devices = []model.DeviceRule{}
	}
	global := model.DefaultGlobalRule()
	if doc.GlobalRules != nil {
		global = *doc.GlobalRules
	}
	return doc.Devices, global, nil
}

// Save 先写临时文件再原子 rename，读者永远看不到半截文档
// 保存失败交给调用方记录，不让进程退出
func (s *Store) Save(devices []model.DeviceRule, global model.GlobalRule) error {
	if devices == nil {
		devices = []model.DeviceRule{}
	}
	doc := document{Devices: devices, GlobalRules: &global}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode rules document: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// Upsert 按 id 替换已有条目 (保持原位置)，不存在则追加
func Upsert(devices []model.DeviceRule, dev model.DeviceRule) []model.DeviceRule {
	for i, d := range devices {
		if d.ID == dev.ID {
			devices[i] = dev
			return devices
		}
	}
	return append(devices, dev)
}

// Delete 按 id 删除，id 不存在时返回 false
func Delete(devices []model.DeviceRule, id string) ([]model.DeviceRule, bool) {
	for i, d := range devices {
		if d.ID == id {
			return append(devices[:i], devices[i+1:]...), true
		}
	}
	return devices, false
}
