//go:build linux

package dispatch

import "golang.org/x/sys/unix"

// isBlockDevice 检查擦除目标是不是块设备节点
func isBlockDevice(path string) bool {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false
	}
	return st.Mode&unix.S_IFMT == unix.S_IFBLK
}
