package preview

import (
	"context"
	"time"
)

// stopTimeout 释放会话时关闭句柄的超时
const stopTimeout = 5 * time.Second

// StartPlay 请求播放，输入齐全后自动打开预览
func (s *Session) StartPlay() {
	s.post(func() {
		s.state.RequirePlay = true
		s.attemptStartLocked()
	})
}

// StopPlay 停止播放，重复调用只产生一次停止通知
func (s *Session) StopPlay() {
	s.post(func() {
		s.state.RequirePlay = false
		s.retry.cancelKind(retryPlay)
		s.stopLocked(s.ctx)
	})
}

// SetSurface 设置或清除渲染目标，传 nil 表示清除
func (s *Session) SetSurface(surface Surface) {
	s.post(func() {
		if sameSurface(s.state.Surface, surface) {
			return
		}
		s.state.Surface = surface
		s.reconcileLocked()
	})
}

// post 在串行路径上持锁执行，会话释放后忽略
func (s *Session) post(fn func()) {
	if s.released.Load() {
		return
	}
	s.worker.Post(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.released.Load() {
			return
		}
		fn()
	})
}

// reconcileLocked 任一输入变化时先停后启，避免句柄绑定过期输入
func (s *Session) reconcileLocked() {
	if s.state.Handle != "" && !s.openedWithCurrentInputs() {
		s.stopLocked(s.ctx)
	}
	s.attemptStartLocked()
}

func (s *Session) openedWithCurrentInputs() bool {
	return sameIdentity(s.opened.Identity, s.state.Identity) &&
		sameConfig(s.opened.Config, s.state.Config) &&
		sameSurface(s.opened.Surface, s.state.Surface)
}

// attemptStartLocked 已持有会话锁，状态修改与网关调用对并发修改保持原子
func (s *Session) attemptStartLocked() {
	if !s.state.RequirePlay || s.state.Handle != "" || !s.state.ready() {
		return
	}

	id, cfg := *s.state.Identity, *s.state.Config
	h, err := s.gw.StartPreview(s.ctx, id, PreviewRequest{
		Channel:  s.opts.Channel,
		Stream:   cfg.Stream,
		Blocking: true,
		Surface:  s.state.Surface,
	})
	if s.released.Load() {
		// 释放期间打开的句柄不会再被释放流程看到，这里直接关闭
		if err == nil {
			if err := s.gw.StopPreview(context.WithoutCancel(s.ctx), h); err != nil {
				s.log.Warn("关闭预览失败", "handle", h, "err", err)
			}
		}
		return
	}
	if err != nil {
		f := classifyPlay(err)
		s.log.Warn("打开预览失败", "kind", f.Kind, "code", f.Code, "err", err)
		s.events.Error(f)
		if f.Kind == KindNotInitialized {
			s.reinitialize()
		}
		// 登录重试成功后会重新尝试播放，不用播放票据顶替它
		if s.retry.pendingKind() != retryLogin {
			s.retry.Arm(s.opts.RetryDelay, retryPlay, func() {
				s.post(s.attemptStartLocked)
			})
		}
		return
	}

	s.state.Handle = h
	s.opened = State{
		Identity: s.state.Identity,
		Config:   s.state.Config,
		Surface:  s.state.Surface,
		Handle:   h,
	}
	s.retry.cancelKind(retryPlay)
	s.log.Info("预览已打开", "handle", h, "stream", cfg.Stream)
	s.events.StartPlay()
}

// stopLocked 先通知再关闭，网关关闭失败也清除句柄
func (s *Session) stopLocked(ctx context.Context) {
	if s.state.Handle == "" {
		return
	}
	h := s.state.Handle
	s.events.StopPlay()

	if err := s.gw.StopPreview(ctx, h); err != nil {
		s.log.Warn("关闭预览失败", "handle", h, "err", err)
	}
	s.state.Handle = ""
	s.opened = State{}
}

func (s *Session) reinitialize() {
	if err := s.gw.Reinitialize(s.ctx); err != nil {
		s.log.Error("网关重新初始化失败", "err", err)
	}
}

func sameIdentity(a, b *Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameConfig(a, b *PlaybackConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameSurface(a, b Surface) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.SinkName() == b.SinkName()
}
