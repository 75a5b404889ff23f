package preview

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/ixugo/goddd/pkg/conc"
)

// Manager 管理进程内的全部会话
type Manager struct {
	gw       Gateway
	registry Registry
	opts     Options
	sessions conc.Map[string, *Session]
}

func NewManager(gw Gateway, registry Registry, opts Options) *Manager {
	opts.setDefaults()
	return &Manager{gw: gw, registry: registry, opts: opts}
}

// Create 创建会话
func (m *Manager) Create() *Session {
	s := NewSession(uuid.NewString(), m.gw, m.registry, m.opts)
	m.sessions.Store(s.ID(), s)
	return s
}

// Get 查询会话
func (m *Manager) Get(id string) (*Session, bool) {
	return m.sessions.Load(id)
}

// Release 释放并移除会话
func (m *Manager) Release(id string) bool {
	s, ok := m.sessions.Load(id)
	if !ok {
		return false
	}
	m.sessions.Delete(id)
	s.Release()
	return true
}

// List 全部会话快照，按 id 排序
func (m *Manager) List() []Snapshot {
	out := make([]Snapshot, 0, 8)
	m.sessions.Range(func(_ string, s *Session) bool {
		out = append(out, s.Snapshot())
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Close 释放全部会话并等待关闭完成
func (m *Manager) Close(ctx context.Context) error {
	var all []*Session
	m.sessions.Range(func(id string, s *Session) bool {
		all = append(all, s)
		m.sessions.Delete(id)
		return true
	})
	for _, s := range all {
		s.Release()
	}
	for _, s := range all {
		select {
		case <-s.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
