package onvifadapter

import (
	"context"
	"log/slog"
	"time"

	"github.com/gowvp/livepreview/internal/core/preview"
	devicemodel "github.com/gowvp/onvif/device"
	sdkdevice "github.com/gowvp/onvif/sdk/device"
	"github.com/ixugo/goddd/pkg/conc"
	"github.com/ixugo/goddd/pkg/orm"
)

// startHealthCheck 异步心跳 + 状态机
//
// 协程 1 定期发送心跳，成功则刷新最后心跳时间；
// 协程 2 定期检查状态，超时标记离线并上报 Reconnecting，恢复后上报 Reconnected。
func (g *Gateway) startHealthCheck(ctx context.Context) {
	interval := g.cfg.HeartbeatInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	timeout := g.cfg.HeartbeatTimeout
	if timeout <= 0 {
		timeout = 70 * time.Second
	}

	go conc.Timer(ctx, interval, interval, func() {
		g.devices.Range(func(_ string, dev *Device) bool {
			go g.sendHeartbeat(ctx, dev)
			return true
		})
	})
	go conc.Timer(ctx, time.Second, time.Second, func() {
		g.checkStatus(ctx, time.Now(), timeout)
	})
}

func (g *Gateway) heartbeat(ctx context.Context, dev *Device) error {
	_, err := sdkdevice.Call_GetDeviceInformation(ctx, dev.Device, devicemodel.GetDeviceInformation{})
	return err
}

func (g *Gateway) sendHeartbeat(ctx context.Context, dev *Device) {
	if err := g.probe(ctx, dev); err != nil {
		slog.DebugContext(ctx, "ONVIF 心跳失败", "address", dev.identity.Address, "err", err)
		return
	}
	dev.mu.Lock()
	dev.keepaliveAt = orm.Now()
	dev.mu.Unlock()
}

// checkStatus 只在状态变化时上报异常
func (g *Gateway) checkStatus(ctx context.Context, now time.Time, timeout time.Duration) {
	g.devices.Range(func(_ string, dev *Device) bool {
		dev.mu.Lock()
		last := dev.keepaliveAt.Time
		since := now.Sub(last)
		online := since < timeout
		changed := dev.isOnline != online
		dev.isOnline = online
		dev.mu.Unlock()

		if !changed {
			return true
		}
		if online {
			slog.InfoContext(ctx, "ONVIF 设备重新上线", "address", dev.identity.Address)
			g.emit(preview.ExceptionEvent{Kind: preview.ExceptionReconnected, Identity: dev.identity})
		} else {
			slog.WarnContext(ctx, "ONVIF 设备离线", "address", dev.identity.Address, "last_keepalive", last, "timeout", since)
			g.emit(preview.ExceptionEvent{Kind: preview.ExceptionReconnecting, Identity: dev.identity})
		}
		return true
	})
}

func (g *Gateway) emit(ev preview.ExceptionEvent) {
	g.mu.Lock()
	fn := g.notify
	g.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}
