//go:build linux

package control

import "golang.org/x/sys/unix"

// restrictUmask 收紧 umask 再建套接字文件，只有 root 可读写
// 返回恢复函数
func restrictUmask() func() {
	old := unix.Umask(0077)
	return func() { unix.Umask(old) }
}
