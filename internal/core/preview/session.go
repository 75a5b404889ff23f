package preview

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gowvp/livepreview/pkg/strand"
)

const (
	DefaultRetryDelay = 5 * time.Second
	DefaultChannel    = 1
)

// Options 会话参数
type Options struct {
	RetryDelay time.Duration   // 固定重试间隔
	Channel    int             // 预览通道号
	Notify     strand.Executor // 观察者回调的执行上下文，默认进程级共享
	Logger     *slog.Logger
}

func (o *Options) setDefaults() {
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.Channel <= 0 {
		o.Channel = DefaultChannel
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Session 单路实时预览会话
//
// 所有公开方法都不阻塞，结果通过 Observer 异步送达。
// 会话状态与网关开/关调用统一在 mu 下串行执行；
// 登录在独立协程中执行，结果经 worker 回到串行路径。
type Session struct {
	id       string
	gw       Gateway
	registry Registry
	opts     Options
	log      *slog.Logger

	events *Dispatcher
	retry  *RetryScheduler
	worker *strand.Strand
	login  *loginCoordinator

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	released atomic.Bool
	gen      atomic.Uint64

	loginMu     sync.Mutex
	cancelLogin context.CancelFunc

	mu          sync.Mutex
	state       State
	opened      State // 当前句柄打开时的输入
	intent      Intent
	inflight    bool
	subscribed  string
	unsubscribe func()
}

// NewSession 创建会话
func NewSession(id string, gw Gateway, registry Registry, opts Options) *Session {
	opts.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	log := opts.Logger.With("session", id)
	return &Session{
		id:       id,
		gw:       gw,
		registry: registry,
		opts:     opts,
		log:      log,
		events:   NewDispatcher(opts.Notify),
		retry:    NewRetryScheduler(),
		worker:   strand.New(),
		login:    &loginCoordinator{gw: gw, registry: registry, log: log},
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

// Attach 注册观察者，返回解除注册函数
func (s *Session) Attach(o Observer) (detach func()) {
	return s.events.Attach(o)
}

// Dispatcher 供 AttachWeak 使用
func (s *Session) Dispatcher() *Dispatcher {
	return s.events
}

// Done 会话释放完成后关闭
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Release 释放会话，之后的调用全部忽略，不再产生任何通知
func (s *Session) Release() {
	if !s.released.CompareAndSwap(false, true) {
		return
	}
	s.events.Detach()
	s.retry.Cancel()
	s.gen.Add(1)
	s.cancelInflightLogin()
	s.cancel()

	s.worker.Post(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		s.stopLocked(ctx)
		cancel()

		if s.unsubscribe != nil {
			s.unsubscribe()
			s.unsubscribe = nil
		}
		s.state = State{}
		s.opened = State{}
		s.subscribed = ""
		s.log.Info("会话已释放")
		close(s.done)
	})
}

// resubscribeLocked 切换订阅地址
func (s *Session) resubscribeLocked(address string) {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.subscribed = address
	s.unsubscribe = s.registry.Subscribe(address, func(ev RegistryEvent) {
		s.post(func() { s.onRegistryEventLocked(address, ev) })
	})
}

// onRegistryEventLocked 注册中心推送的身份变化与异常事件
func (s *Session) onRegistryEventLocked(address string, ev RegistryEvent) {
	if address != s.subscribed || ev.Address != address {
		return
	}

	if ex := ev.Exception; ex != nil {
		if s.state.Identity == nil || *s.state.Identity != ex.Identity {
			return
		}
		switch ex.Kind {
		case ExceptionReconnecting:
			s.log.Warn("设备连接丢失，等待网关重连")
			s.events.Reconnect()
		case ExceptionReconnected:
			s.log.Info("设备重连成功")
			s.events.ReconnectSuccess()
		}
		return
	}

	if sameIdentity(s.state.Identity, ev.Identity) {
		return
	}
	// 自己的登录结果即将送达，以登录结果为准
	if ev.Identity != nil && s.inflight {
		return
	}
	if ev.Identity == nil {
		s.log.Warn("身份被注销，停止预览并等待新的输入")
	}
	s.state.Identity = ev.Identity
	s.reconcileLocked()
}

// Snapshot 返回当前状态快照
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Snapshot{
		ID:          s.id,
		Address:     s.intent.Address,
		Stream:      s.intent.Stream,
		LoggedIn:    s.state.Identity != nil,
		RequirePlay: s.state.RequirePlay,
		Handle:      string(s.state.Handle),
		Phase:       s.phaseLocked().String(),
		Released:    s.released.Load(),
	}
	if s.state.Surface != nil {
		out.Surface = s.state.Surface.SinkName()
	}
	return out
}

// Phase 当前播放控制器状态
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phaseLocked()
}

func (s *Session) phaseLocked() Phase {
	switch {
	case s.state.Handle != "":
		return PhasePlaying
	case !s.state.RequirePlay:
		return PhaseIdle
	case s.retry.pendingKind() == retryPlay:
		return PhaseRetryPending
	default:
		return PhaseAwaitingInputs
	}
}
