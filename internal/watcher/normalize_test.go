package watcher

import (
	"testing"

	"github.com/Hara602/duressGuard/internal/model"
)

func usbEnv(devtype string) map[string]string {
	return map[string]string{
		"SUBSYSTEM":       "usb",
		"DEVTYPE":         devtype,
		"DEVPATH":         "/devices/pci0000:00/usb1/1-4",
		"ID_VENDOR_ID":    "1D6B",
		"ID_MODEL_ID":     "0002",
		"ID_SERIAL_SHORT": "SER123",
	}
}

func TestNormalizeInsert(t *testing.T) {
	ev, ok := normalizeUEvent("add", usbEnv("usb_device"), nil)
	if !ok {
		t.Fatal("expected event")
	}
	if ev.Action != model.ActionInsert {
		t.Fatalf("action %q", ev.Action)
	}
	if ev.VendorID != "1d6b" || ev.ProductID != "0002" {
		t.Fatalf("vid/pid not lower-cased: %+v", ev)
	}
	if ev.Serial != "SER123" {
		t.Fatalf("serial %q", ev.Serial)
	}
}

func TestNormalizeDiscardsSubDeviceNotifications(t *testing.T) {
	if _, ok := normalizeUEvent("add", usbEnv("usb_interface"), nil); ok {
		t.Fatal("interface-level notification must be discarded")
	}
	env := usbEnv("usb_device")
	env["SUBSYSTEM"] = "block"
	if _, ok := normalizeUEvent("add", env, nil); ok {
		t.Fatal("non-usb subsystem must be discarded")
	}
}

func TestNormalizeDiscardsOtherActions(t *testing.T) {
	for _, action := range []string{"bind", "unbind", "change", ""} {
		if _, ok := normalizeUEvent(action, usbEnv("usb_device"), nil); ok {
			t.Fatalf("action %q must be discarded", action)
		}
	}
}

func TestNormalizeSysfsFallback(t *testing.T) {
	env := usbEnv("usb_device")
	delete(env, "ID_VENDOR_ID")
	delete(env, "ID_SERIAL_SHORT")

	reader := func(devPath string) (string, string, string) {
		if devPath != "/devices/pci0000:00/usb1/1-4" {
			t.Fatalf("unexpected devpath %q", devPath)
		}
		return "ABCD", "ffff", "FROMSYS"
	}
	ev, ok := normalizeUEvent("remove", env, reader)
	if !ok {
		t.Fatal("expected event")
	}
	if ev.VendorID != "abcd" {
		t.Fatalf("sysfs vid not used: %+v", ev)
	}
	if ev.ProductID != "0002" {
		t.Fatalf("udev property must win over sysfs: %+v", ev)
	}
	if ev.Serial != "FROMSYS" {
		t.Fatalf("sysfs serial not used: %+v", ev)
	}
}

func TestNormalizePathFallbackForSerial(t *testing.T) {
	env := usbEnv("usb_device")
	delete(env, "ID_SERIAL_SHORT")
	ev, ok := normalizeUEvent("remove", env, func(string) (string, string, string) { return "", "", "" })
	if !ok {
		t.Fatal("expected event")
	}
	if ev.Serial != "/devices/pci0000:00/usb1/1-4" {
		t.Fatalf("expected devpath fallback, got %q", ev.Serial)
	}
}

func TestNormalizeDiscardsUnidentifiableEvent(t *testing.T) {
	env := map[string]string{"SUBSYSTEM": "usb", "DEVTYPE": "usb_device"}
	if _, ok := normalizeUEvent("add", env, nil); ok {
		t.Fatal("event with no identifying fields must be discarded")
	}
}
