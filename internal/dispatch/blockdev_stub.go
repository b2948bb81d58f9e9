//go:build !linux

package dispatch

func isBlockDevice(path string) bool { return true }
