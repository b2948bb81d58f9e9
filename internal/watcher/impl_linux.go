//go:build linux

package watcher

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Hara602/duressGuard/internal/model"
	"github.com/Hara602/duressGuard/internal/sysutil"
	"github.com/pilebones/go-udev/netlink"
)

type linuxWatcher struct {
	events chan model.UsbEvent
	stop   chan struct{}
}

func newWatcher(buffer int) DeviceWatcher {
	return &linuxWatcher{
		events: make(chan model.UsbEvent, buffer),
		stop:   make(chan struct{}),
	}
}

func (w *linuxWatcher) Start() (<-chan model.UsbEvent, error) {
	// 监听 UDEV 事件,连接 NETLINK_KOBJECT_UEVENT
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		return nil, err
	}
	queue := make(chan netlink.UEvent)
	errChan := make(chan error)

	quit := conn.Monitor(queue, errChan, nil)

	go func() {
		defer conn.Close()
		for {
			select {
			case <-w.stop:
				close(quit)
				return

			case <-errChan:
				// 忽略底层网络错误，继续尝试
				continue

			case uevent := <-queue:
				w.handleUdevEvent(uevent)
			}
		}
	}()
	return w.events, nil
}

func (w *linuxWatcher) Stop() {
	close(w.stop)
}

func (w *linuxWatcher) handleUdevEvent(uevent netlink.UEvent) {
	ev, ok := normalizeUEvent(string(uevent.Action), uevent.Env, readSysfsIDs)
	if !ok {
		return
	}
	ev.TimeStamp = time.Now()
	w.events <- ev
}

// readSysfsIDs 从 /sys 设备树读标识字段
// uevent 的 DEVPATH 可能指在接口层，向上回溯到含 idVendor 的 USB 设备根目录
func readSysfsIDs(devPath string) (string, string, string) {
	if devPath == "" {
		return "", "", ""
	}
	usbRoot := findUSBRoot("/sys" + devPath)
	vid := readFile(filepath.Join(usbRoot, "idVendor"))
	pid := readFile(filepath.Join(usbRoot, "idProduct"))
	serial := readFile(filepath.Join(usbRoot, "serial"))
	if vid == "" && pid == "" && serial == "" {
		sysutil.LogSugar.Debugf("sysfs lookup empty for %s", devPath)
	}
	return vid, pid, serial
}

// findUSBRoot 向上查找包含 idVendor 的目录（即 USB Device 根目录）
func findUSBRoot(path string) string {
	dir := path
	// 向上回溯最多 10 层，通常 USB 设备在 sysfs 树的上层
	for i := 0; i < 10; i++ {
		if _, err := os.Stat(filepath.Join(dir, "idVendor")); err == nil {
			return dir
		}
		dir = filepath.Dir(dir)
		if dir == "/" || dir == "." {
			break
		}
	}
	return path
}

func readFile(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
