// Package strand 提供串行执行上下文
//
// Post 永不阻塞调用方，任务按提交顺序在同一逻辑上下文中依次执行，
// 任意时刻最多只有一个任务在运行。
package strand

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

// Executor 执行上下文抽象，会话的状态更新路径与事件派发都依赖它
type Executor interface {
	Post(fn func())
}

var _ Executor = (*Strand)(nil)

// Strand 无界 FIFO 串行执行器
type Strand struct {
	mu      sync.Mutex
	queue   []func()
	running bool
	idle    *sync.Cond
}

func New() *Strand {
	s := Strand{}
	s.idle = sync.NewCond(&s.mu)
	return &s
}

// Post 提交任务，立即返回
func (s *Strand) Post(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()
	go s.run()
}

func (s *Strand) run() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			s.idle.Broadcast()
			s.mu.Unlock()
			return
		}
		fn := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.exec(fn)
	}
}

func (s *Strand) exec(fn func()) {
	defer func() {
		if err := recover(); err != nil {
			slog.Error("strand task panic", "err", err, "stack", string(debug.Stack()))
		}
	}()
	fn()
}

// Wait 阻塞直到队列清空，用于关闭流程与测试
func (s *Strand) Wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.running {
		s.idle.Wait()
	}
}

var (
	defaultOnce   sync.Once
	defaultStrand *Strand
)

// Default 进程级共享的执行上下文，观察者回调默认在此投递
func Default() *Strand {
	defaultOnce.Do(func() {
		defaultStrand = New()
	})
	return defaultStrand
}
