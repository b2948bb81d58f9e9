//go:build !linux

package control

func restrictUmask() func() { return func() {} }
