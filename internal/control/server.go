package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/Hara602/duressGuard/internal/config"
	"github.com/Hara602/duressGuard/internal/engine"
	"github.com/Hara602/duressGuard/internal/model"
	"github.com/Hara602/duressGuard/internal/sysutil"
	"go.uber.org/zap"
)

// Server 本地控制协议服务
// unixgram 套接字，一个数据报一帧，单循环顺序处理，没有按请求并发
// 应答发往 GUI 侧的应答套接字，尽力而为: 没有监听方就丢弃
type Server struct {
	state     *engine.DaemonState
	cmdPath   string
	replyPath string

	conn *net.UnixConn
	stop chan struct{}
}

func New(state *engine.DaemonState, sockets config.SocketConfig) *Server {
	return &Server{
		state:     state,
		cmdPath:   sockets.Command,
		replyPath: sockets.Reply,
		stop:      make(chan struct{}),
	}
}

func (s *Server) Start() error {
	// 上次异常退出可能留下旧套接字文件
	if err := os.Remove(s.cmdPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	addr, err := net.ResolveUnixAddr("unixgram", s.cmdPath)
	if err != nil {
		return err
	}
	restore := restrictUmask()
	conn, err := net.ListenUnixgram("unixgram", addr)
	restore()
	if err != nil {
		return fmt.Errorf("bind command socket: %w", err)
	}
	s.conn = conn

	sysutil.Log.Info("🎛️ Command socket initialized", zap.String("path", s.cmdPath))
	go s.loop()
	return nil
}

func (s *Server) Stop() {
	close(s.stop)
	if s.conn != nil {
		s.conn.Close()
	}
	os.Remove(s.cmdPath)
}

func (s *Server) loop() {
	buf := make([]byte, 64*1024)
	for {
		n, _, err := s.conn.ReadFromUnix(buf)
		if err != nil {
			select {
			case <-s.stop:
				return
			default:
			}
			sysutil.Log.Error("Command socket read failed", zap.Error(err))
			continue
		}
		frame := strings.TrimSpace(string(buf[:n]))
		if frame == "" {
			continue
		}
		if reply, ok := s.handle(frame); ok {
			s.respond(reply)
		}
	}
}

// handle 处理一帧请求，返回应答和是否需要应答
func (s *Server) handle(frame string) (string, bool) {
	req := Parse(frame)
	sysutil.Log.Debug("Received command", zap.String("frame", frame))

	switch req.Kind {
	case KindArm:
		s.state.Arm()
		sysutil.Log.Warn("⚠️ System ARMED")
		return "OK:ARMED", true

	case KindDisarm:
		s.state.Disarm()
		sysutil.Log.Info("System disarmed")
		return "OK:DISARMED", true

	case KindGetDevices:
		data, err := json.Marshal(s.state.Devices())
		if err != nil {
			sysutil.Log.Error("Encode devices failed", zap.Error(err))
			return "", false
		}
		return "DEVICES:" + string(data), true

	case KindGetGlobal:
		data, err := json.Marshal(s.state.Global())
		if err != nil {
			sysutil.Log.Error("Encode global rule failed", zap.Error(err))
			return "", false
		}
		return "GLOBAL:" + string(data), true

	case KindLastEvent:
		ev, ok := s.state.LastEvent()
		if !ok {
			return "LAST_EVENT:{}", true
		}
		data, err := json.Marshal(ev)
		if err != nil {
			sysutil.Log.Error("Encode last event failed", zap.Error(err))
			return "", false
		}
		return "LAST_EVENT:" + string(data), true

	case KindSetGlobal:
		var global model.GlobalRule
		if err := json.Unmarshal([]byte(req.Payload), &global); err != nil {
			return "ERROR:BAD_GLOBAL_JSON", true
		}
		s.logSaveErr(s.state.SetGlobal(global))
		return "OK:GLOBAL_UPDATED", true

	case KindAddDevice:
		var dev model.DeviceRule
		if err := json.Unmarshal([]byte(req.Payload), &dev); err != nil {
			return "ERROR:BAD_DEVICE_JSON", true
		}
		if dev.ID == "" {
			return "ERROR:MISSING_DEVICE_ID", true
		}
		s.logSaveErr(s.state.UpsertDevice(dev))
		return "OK:DEVICE_ADDED", true

	case KindUpdateDevice:
		var dev model.DeviceRule
		if err := json.Unmarshal([]byte(req.Payload), &dev); err != nil {
			return "ERROR:BAD_DEVICE_JSON", true
		}
		err := s.state.UpdateDevice(dev)
		if errors.Is(err, engine.ErrNotFound) {
			return "ERROR:DEVICE_NOT_FOUND", true
		}
		s.logSaveErr(err)
		return "OK:DEVICE_UPDATED", true

	case KindDeleteDevice:
		err := s.state.DeleteDevice(req.Payload)
		if errors.Is(err, engine.ErrNotFound) {
			return "ERROR:DEVICE_NOT_FOUND", true
		}
		s.logSaveErr(err)
		return "OK:DEVICE_DELETED", true

	case KindSetActive:
		id, flag, ok := strings.Cut(req.Payload, ":")
		if !ok || id == "" {
			return "ERROR:DEVICE_NOT_FOUND", true
		}
		err := s.state.SetDeviceActive(id, flag == "1")
		if errors.Is(err, engine.ErrNotFound) {
			return "ERROR:DEVICE_NOT_FOUND", true
		}
		s.logSaveErr(err)
		return "OK:ACTIVE_SET", true

	case KindUnknown:
		// 未知命令不应答，只记日志
		sysutil.Log.Warn("Unknown command", zap.String("frame", frame))
		return "", false
	}
	return "", false
}

// logSaveErr 落盘失败不是协议错误: 内存里已是调用方想要的值，
// 下一次成功保存会补齐，这里只让操作员看见
func (s *Server) logSaveErr(err error) {
	if err != nil {
		sysutil.Log.Error("Config save failed", zap.Error(err))
	}
}

// respond GUI 监听方可能不在线，发送失败静默丢弃
func (s *Server) respond(message string) {
	conn, err := net.Dial("unixgram", s.replyPath)
	if err != nil {
		sysutil.Log.Debug("No reply listener", zap.Error(err))
		return
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(message)); err != nil {
		sysutil.Log.Debug("Reply send failed", zap.Error(err))
	}
}
