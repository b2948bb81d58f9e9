package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Hara602/duressGuard/internal/dispatch"
	"github.com/Hara602/duressGuard/internal/model"
	"github.com/Hara602/duressGuard/internal/rulestore"
	"github.com/Hara602/duressGuard/internal/sysutil"
)

func TestMain(m *testing.M) {
	sysutil.InitLogger("error", "")
	os.Exit(m.Run())
}

type fakeDispatcher struct {
	calls []dispatch.Trigger
}

func (f *fakeDispatcher) Dispatch(t dispatch.Trigger) dispatch.Outcome {
	f.calls = append(f.calls, t)
	if t.TestMode {
		return dispatch.OutcomeTestMode
	}
	return dispatch.OutcomeExecuted
}

func newTestEngine(devices []model.DeviceRule, global model.GlobalRule) (*Engine, *DaemonState, *fakeDispatcher) {
	state := NewDaemonState(nil, devices, global)
	fd := &fakeDispatcher{}
	return NewEngine(state, fd, nil), state, fd
}

func wipeRule() model.DeviceRule {
	return model.DeviceRule{
		ID: "A", Name: "duress stick",
		VendorID: "1234", ProductID: "abcd",
		Mode: model.ModeInsert, Action: model.RuleActionWipe,
		WipeTarget: "/dev/sda3", Active: true, TestMode: false,
	}
}

func TestDisarmedNothingFiresButLastEventUpdates(t *testing.T) {
	eng, state, fd := newTestEngine(
		[]model.DeviceRule{wipeRule()},
		model.GlobalRule{Active: true, Mode: model.ModeAny, Action: model.RuleActionLock},
	)

	ev := model.UsbEvent{Action: model.ActionInsert, VendorID: "1234", ProductID: "abcd", Serial: "xyz"}
	eng.HandleEvent(ev)

	if len(fd.calls) != 0 {
		t.Fatalf("disarmed system dispatched %d actions", len(fd.calls))
	}
	last, ok := state.LastEvent()
	if !ok || last.Serial != "xyz" {
		t.Fatalf("lastEvent not updated while disarmed: %+v ok=%v", last, ok)
	}
}

func TestDisarmedSuppressesEvenWithoutTestMode(t *testing.T) {
	rule := wipeRule()
	rule.TestMode = false
	eng, _, fd := newTestEngine([]model.DeviceRule{rule}, model.DefaultGlobalRule())

	eng.HandleEvent(model.UsbEvent{Action: model.ActionInsert, VendorID: "1234", ProductID: "abcd", Serial: "s"})
	if len(fd.calls) != 0 {
		t.Fatal("armed gate must hold regardless of test_mode")
	}
}

func TestArmedSingleWipeDispatch(t *testing.T) {
	// global 关闭 + 一条精确 wipe 规则: 恰好一次派发，目标来自规则
	eng, state, fd := newTestEngine([]model.DeviceRule{wipeRule()}, model.DefaultGlobalRule())
	state.Arm()

	eng.HandleEvent(model.UsbEvent{Action: model.ActionInsert, VendorID: "1234", ProductID: "abcd", Serial: "xyz"})

	if len(fd.calls) != 1 {
		t.Fatalf("expected exactly 1 dispatch, got %d", len(fd.calls))
	}
	got := fd.calls[0]
	if got.Action != model.RuleActionWipe || got.WipeTarget != "/dev/sda3" {
		t.Fatalf("wrong trigger: %+v", got)
	}
	if got.RuleName == "GLOBAL-RULE" {
		t.Fatal("inactive global rule dispatched")
	}
}

func TestGlobalDispatchesBeforeDeviceRules(t *testing.T) {
	devices := []model.DeviceRule{
		{ID: "1", Name: "first", Mode: model.ModeAny, Action: model.RuleActionLock, Active: true},
		{ID: "2", Name: "second", Mode: model.ModeAny, Action: model.RuleActionLock, Active: true},
	}
	global := model.GlobalRule{Active: true, Mode: model.ModeAny, Action: model.RuleActionLock}
	eng, state, fd := newTestEngine(devices, global)
	state.Arm()

	eng.HandleEvent(model.UsbEvent{Action: model.ActionInsert, Serial: "s"})

	if len(fd.calls) != 3 {
		t.Fatalf("expected 3 dispatches, got %d", len(fd.calls))
	}
	if fd.calls[0].RuleName != "GLOBAL-RULE" {
		t.Fatalf("global rule must dispatch first, got %q", fd.calls[0].RuleName)
	}
	if fd.calls[1].RuleName != "first" || fd.calls[2].RuleName != "second" {
		t.Fatalf("device rules out of order: %q, %q", fd.calls[1].RuleName, fd.calls[2].RuleName)
	}
}

func TestTestModeFlagReachesDispatcher(t *testing.T) {
	rule := wipeRule()
	rule.TestMode = true
	eng, state, fd := newTestEngine([]model.DeviceRule{rule}, model.DefaultGlobalRule())
	state.Arm()

	eng.HandleEvent(model.UsbEvent{Action: model.ActionInsert, VendorID: "1234", ProductID: "abcd", Serial: "s"})
	if len(fd.calls) != 1 || !fd.calls[0].TestMode {
		t.Fatalf("test_mode flag lost on the way to dispatcher: %+v", fd.calls)
	}
}

func TestArmDisarmIdempotent(t *testing.T) {
	state := NewDaemonState(nil, nil, model.DefaultGlobalRule())
	state.Arm()
	state.Arm()
	if !state.Armed() {
		t.Fatal("expected armed after double ARM")
	}
	state.Disarm()
	state.Disarm()
	if state.Armed() {
		t.Fatal("expected disarmed after double DISARM")
	}
}

func TestMutationsPersistSynchronously(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	store := rulestore.New(path)
	state := NewDaemonState(store, nil, model.DefaultGlobalRule())

	if err := state.UpsertDevice(wipeRule()); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	devices, _, err := store.Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(devices) != 1 || devices[0].ID != "A" {
		t.Fatalf("mutation not durable before ack: %+v", devices)
	}
}

func TestConfigMutationDoesNotTouchArming(t *testing.T) {
	state := NewDaemonState(nil, nil, model.DefaultGlobalRule())
	state.Arm()
	state.UpsertDevice(wipeRule())
	state.SetGlobal(model.GlobalRule{Active: true, Mode: model.ModeAny})
	if !state.Armed() {
		t.Fatal("config mutation changed armed state")
	}
}

func TestSnapshotIsolatedFromLaterMutations(t *testing.T) {
	state := NewDaemonState(nil, []model.DeviceRule{wipeRule()}, model.DefaultGlobalRule())
	devices, _ := state.ObserveEvent(model.UsbEvent{Action: model.ActionInsert, Serial: "s"})
	state.DeleteDevice("A")
	if len(devices) != 1 {
		t.Fatal("snapshot must not observe later mutations")
	}
}
