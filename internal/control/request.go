package control

import "strings"

// Kind 控制协议请求类型
// 字符串前缀只在这里解析一次，后面的处理都走带类型的分发
type Kind int

const (
	KindUnknown Kind = iota
	KindArm
	KindDisarm
	KindGetDevices
	KindGetGlobal
	KindLastEvent
	KindSetGlobal
	KindAddDevice
	KindUpdateDevice
	KindDeleteDevice
	KindSetActive
)

// Request 解码后的请求帧，Payload 是命令前缀之后的原始内容
type Request struct {
	Kind    Kind
	Payload string
	Raw     string
}

func Parse(frame string) Request {
	req := Request{Raw: frame}
	switch frame {
	case "ARM":
		req.Kind = KindArm
		return req
	case "DISARM":
		req.Kind = KindDisarm
		return req
	case "GET_DEVICES":
		req.Kind = KindGetDevices
		return req
	case "GET_GLOBAL":
		req.Kind = KindGetGlobal
		return req
	}

	prefixes := []struct {
		prefix string
		kind   Kind
	}{
		{"LAST_EVENT", KindLastEvent},
		{"SET_GLOBAL:", KindSetGlobal},
		{"ADD_DEVICE:", KindAddDevice},
		{"UPDATE_DEVICE:", KindUpdateDevice},
		{"DELETE_DEVICE:", KindDeleteDevice},
		{"SET_ACTIVE:", KindSetActive},
	}
	for _, p := range prefixes {
		if strings.HasPrefix(frame, p.prefix) {
			req.Kind = p.kind
			req.Payload = frame[len(p.prefix):]
			return req
		}
	}
	return req
}
