package sysutil

import (
	"net"
	"sync"
)

// notifySink 把日志行转发到本地 unixgram 套接字的 WriteSyncer
// 监听方 (GUI) 随时可能不在线，所以任何错误都吞掉，绝不反压日志路径
type notifySink struct {
	path string

	mu   sync.Mutex
	conn net.Conn
}

func newNotifySink(path string) *notifySink {
	return &notifySink{path: path}
}

func (s *notifySink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		conn, err := net.Dial("unixgram", s.path)
		if err != nil {
			// 没有监听方，丢弃
			return len(p), nil
		}
		s.conn = conn
	}
	if _, err := s.conn.Write(p); err != nil {
		// 监听方掉线，下次重连
		s.conn.Close()
		s.conn = nil
	}
	return len(p), nil
}

func (s *notifySink) Sync() error { return nil }
