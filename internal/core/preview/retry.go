package preview

import (
	"sync"
	"time"
)

// retryKind 区分重试票据的来源
type retryKind int

const (
	retryLogin retryKind = iota + 1
	retryPlay
)

func (k retryKind) String() string {
	if k == retryLogin {
		return "login"
	}
	return "play"
}

// ticket 以指针作为身份，失效的票据不会释放新票据
type ticket struct {
	kind   retryKind
	timer  *time.Timer
	action func()
}

// RetryScheduler 每个会话最多持有一个待执行的延迟任务
type RetryScheduler struct {
	mu      sync.Mutex
	current *ticket
	armed   int
}

func NewRetryScheduler() *RetryScheduler {
	return &RetryScheduler{}
}

// Arm 取消已有票据，delay 后执行一次 action
func (r *RetryScheduler) Arm(delay time.Duration, kind retryKind, action func()) {
	t := ticket{kind: kind, action: action}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	r.current = &t
	r.armed++
	t.timer = time.AfterFunc(delay, func() { r.fire(&t) })
}

func (r *RetryScheduler) fire(t *ticket) {
	r.mu.Lock()
	if r.current != t {
		// 已被取消或被新票据替换
		r.mu.Unlock()
		return
	}
	r.current = nil
	r.mu.Unlock()

	t.action()
}

// Cancel 幂等，没有票据时也可以调用
func (r *RetryScheduler) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

// cancelKind 仅取消指定来源的票据
func (r *RetryScheduler) cancelKind(kind retryKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil && r.current.kind == kind {
		r.stopLocked()
	}
}

func (r *RetryScheduler) stopLocked() {
	if r.current == nil {
		return
	}
	r.current.timer.Stop()
	r.current = nil
}

// pendingKind 待执行票据的来源，没有票据时为 0
func (r *RetryScheduler) pendingKind() retryKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return 0
	}
	return r.current.kind
}

// Pending 是否存在待执行的票据
func (r *RetryScheduler) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil
}

// Armed 累计布置次数
func (r *RetryScheduler) Armed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.armed
}
