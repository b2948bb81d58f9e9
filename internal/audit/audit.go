package audit

import (
	"database/sql"
	"fmt"

	"github.com/Hara602/duressGuard/internal/model"
	"github.com/Hara602/duressGuard/internal/sysutil"
	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Journal 事件和派发结果的 sqlite 流水账
// 纯观测用途，写入尽力而为，任何错误只记日志
// nil *Journal 是合法的空实现 (审计关闭时)
type Journal struct {
	db *sql.DB
}

func Open(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS usb_events (
		id TEXT PRIMARY KEY,
		action TEXT,
		vid TEXT,
		pid TEXT,
		serial TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS dispatches (
		id TEXT PRIMARY KEY,
		event_id TEXT,
		rule_name TEXT,
		action TEXT,
		outcome TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create audit tables: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// RecordEvent 记录一条规范化事件，返回事件 id 供派发记录关联
func (j *Journal) RecordEvent(ev model.UsbEvent) string {
	id := uuid.NewString()
	if j == nil || j.db == nil {
		return id
	}
	_, err := j.db.Exec(
		"INSERT INTO usb_events(id, action, vid, pid, serial) VALUES (?, ?, ?, ?, ?)",
		id, string(ev.Action), ev.VendorID, ev.ProductID, ev.Serial,
	)
	if err != nil {
		sysutil.Log.Error("Audit event write failed", zap.Error(err))
	}
	return id
}

// RecordDispatch 记录一次派发决策 (含被闸门或 test_mode 拦下的)
func (j *Journal) RecordDispatch(eventID, ruleName string, action model.RuleAction, outcome string) {
	if j == nil || j.db == nil {
		return
	}
	_, err := j.db.Exec(
		"INSERT INTO dispatches(id, event_id, rule_name, action, outcome) VALUES (?, ?, ?, ?, ?)",
		uuid.NewString(), eventID, ruleName, string(action), outcome,
	)
	if err != nil {
		sysutil.Log.Error("Audit dispatch write failed", zap.Error(err))
	}
}

// CountDispatches 按结果统计，GUI 日志页用
func (j *Journal) CountDispatches(outcome string) (int, error) {
	if j == nil || j.db == nil {
		return 0, nil
	}
	var n int
	err := j.db.QueryRow("SELECT COUNT(*) FROM dispatches WHERE outcome = ?", outcome).Scan(&n)
	return n, err
}
