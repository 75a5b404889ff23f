package onvifadapter

import (
	"context"
	"log/slog"

	"github.com/gowvp/livepreview/internal/core/preview"
)

// OnRelayPullStop 流媒体回调拉流结束
//
// 网关主动关闭的拉流已不在句柄表中，直接忽略；
// 其余视为设备侧断流，按设备离线处理，等待心跳恢复后上报重连成功。
func (g *Gateway) OnRelayPullStop(ctx context.Context, stream string) {
	var (
		found bool
		h     preview.Handle
		s     session
	)
	g.handles.Range(func(k preview.Handle, v session) bool {
		if v.stream == stream {
			h, s, found = k, v, true
			return false
		}
		return true
	})
	if !found {
		return
	}

	dev, ok := g.devices.Load(s.token)
	if !ok {
		return
	}
	slog.WarnContext(ctx, "拉流意外结束", "stream", stream, "handle", h, "address", dev.identity.Address)

	dev.mu.Lock()
	changed := dev.isOnline
	dev.isOnline = false
	dev.mu.Unlock()
	if changed {
		g.emit(preview.ExceptionEvent{Kind: preview.ExceptionReconnecting, Identity: dev.identity})
	}
}
