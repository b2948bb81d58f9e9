package watcher

import "github.com/Hara602/duressGuard/internal/model"

// DeviceWatcher 定义接口
type DeviceWatcher interface {
	Start() (<-chan model.UsbEvent, error)
	Stop()
}

func New(buffer int) DeviceWatcher {
	if buffer <= 0 {
		buffer = 10
	}
	return newWatcher(buffer)
}
