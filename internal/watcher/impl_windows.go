//go:build windows

package watcher

import "github.com/Hara602/duressGuard/internal/model"

type winWatcher struct{}

func newWatcher(buffer int) DeviceWatcher                   { return &winWatcher{} }
func (w *winWatcher) Start() (<-chan model.UsbEvent, error) { return nil, nil }
func (w *winWatcher) Stop()                                 {}
