package preview

import (
	"context"
)

// Init 提交新的会话意图，可在上一个意图处理中随时调用
//
// 只处理最近一次提交的意图：每次提交递增代数，过期代数的登录结果直接丢弃。
// 字段为空的意图静默忽略。
func (s *Session) Init(in Intent) {
	if s.released.Load() {
		return
	}
	if !in.Valid() {
		s.log.Debug("忽略无效意图", "address", in.Address)
		return
	}

	// 新意图取代旧意图的一切重试理由
	s.retry.Cancel()
	gen := s.gen.Add(1)
	s.cancelInflightLogin()

	s.worker.Post(func() { s.submit(gen, in) })
}

func (s *Session) submit(gen uint64, in Intent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(gen) {
		return
	}

	if s.subscribed != in.Address {
		s.resubscribeLocked(in.Address)
		if s.state.Identity != nil && s.state.Identity.Address != in.Address {
			s.state.Identity = nil
			s.state.Config = nil
			s.reconcileLocked()
		}
	}
	s.intent = in
	s.startLoginLocked(gen, in)
}

// startLoginLocked 登记取消函数后再次确认代数
//
// Init 先递增代数再持 loginMu 取消登录，因此在 loginMu 内看到的代数仍有效时，
// 之后的 Init 一定会取消这里登记的登录。
func (s *Session) startLoginLocked(gen uint64, in Intent) {
	ctx, cancel := context.WithCancel(s.ctx)
	s.loginMu.Lock()
	if !s.current(gen) {
		s.loginMu.Unlock()
		cancel()
		return
	}
	s.cancelLogin = cancel
	s.loginMu.Unlock()
	s.inflight = true

	go s.runLogin(ctx, gen, in)
}

func (s *Session) runLogin(ctx context.Context, gen uint64, in Intent) {
	id, failure := s.login.authenticate(ctx, in)
	if ctx.Err() != nil {
		return
	}
	s.worker.Post(func() { s.onLogin(gen, in, id, failure) })
}

// onLogin 登录结果回到串行路径后再修改会话状态
func (s *Session) onLogin(gen uint64, in Intent, id Identity, failure *Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(gen) {
		s.log.Debug("丢弃过期登录结果", "address", in.Address)
		return
	}
	s.inflight = false

	if failure != nil {
		if s.state.Identity != nil {
			s.state.Identity = nil
			s.reconcileLocked()
		}
		s.events.Error(failure)

		switch failure.Kind {
		case KindNotInitialized:
			s.reinitialize()
			s.armLoginRetry(gen, in)
		case KindTransientLogin:
			s.armLoginRetry(gen, in)
		default:
			s.log.Warn("登录失败，不再重试", "kind", failure.Kind)
		}
		return
	}

	s.state.Identity = &id
	s.state.Config = &PlaybackConfig{Address: in.Address, Stream: in.Stream}
	s.reconcileLocked()
}

func (s *Session) armLoginRetry(gen uint64, in Intent) {
	s.retry.Arm(s.opts.RetryDelay, retryLogin, func() {
		s.worker.Post(func() { s.retryLogin(gen, in) })
	})
}

// retryLogin 重试沿用原代数，不会取消新布置的票据
func (s *Session) retryLogin(gen uint64, in Intent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(gen) {
		return
	}
	s.log.Info("重试登录", "address", in.Address)
	s.startLoginLocked(gen, in)
}

func (s *Session) cancelInflightLogin() {
	s.loginMu.Lock()
	defer s.loginMu.Unlock()
	if s.cancelLogin != nil {
		s.cancelLogin()
		s.cancelLogin = nil
	}
}

func (s *Session) current(gen uint64) bool {
	return !s.released.Load() && gen == s.gen.Load()
}
