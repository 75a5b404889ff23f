// Package registry 进程级登录注册中心
//
// 以设备地址为键缓存已登录身份，同一地址的多个会话共享一次登录；
// 身份变化与网关异常按地址扇出给订阅者。
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gowvp/livepreview/internal/core/preview"
	"github.com/ixugo/goddd/pkg/conc"
	"github.com/ixugo/goddd/pkg/orm"
)

var _ preview.Registry = (*Registry)(nil)

type entry struct {
	id    preview.Identity
	creds preview.Credentials
}

// Registry 全局登录注册中心
type Registry struct {
	gw      preview.Gateway
	store   Storer
	entries conc.Map[string, entry]

	mu   sync.Mutex
	seq  uint64
	subs map[string]map[uint64]func(preview.RegistryEvent)
}

// NewRegistry store 可以为 nil，此时只维护内存状态
func NewRegistry(gw preview.Gateway, store Storer) *Registry {
	r := Registry{
		gw:    gw,
		store: store,
		subs:  make(map[string]map[uint64]func(preview.RegistryEvent)),
	}
	gw.SetExceptionHandler(r.onException)
	return &r
}

// Lookup implements preview.Registry.
func (r *Registry) Lookup(address string) (preview.Identity, preview.Credentials, bool) {
	e, ok := r.entries.Load(address)
	return e.id, e.creds, ok
}

// Publish implements preview.Registry.
func (r *Registry) Publish(ctx context.Context, id preview.Identity, creds preview.Credentials) {
	r.entries.Store(id.Address, entry{id: id, creds: creds})

	if r.store != nil {
		now := orm.Now()
		if err := r.store.Save(ctx, &Login{
			Address:    id.Address,
			Username:   creds.Username,
			IsOnline:   true,
			LoggedInAt: now,
			UpdatedAt:  now,
		}); err != nil {
			slog.ErrorContext(ctx, "保存登录记录失败", "err", err, "address", id.Address)
		}
	}
	r.notify(preview.RegistryEvent{Address: id.Address, Identity: &id})
}

// Logout implements preview.Registry.
func (r *Registry) Logout(ctx context.Context, address string) error {
	e, ok := r.entries.Load(address)
	if !ok {
		return nil
	}
	r.entries.Delete(address)

	var err error
	if lerr := r.gw.Logout(ctx, e.id); lerr != nil {
		err = fmt.Errorf("注销 %s 失败: %w", address, lerr)
	}
	r.setOnline(ctx, address, false)
	r.notify(preview.RegistryEvent{Address: address})
	return err
}

// Subscribe implements preview.Registry.
func (r *Registry) Subscribe(address string, fn func(preview.RegistryEvent)) (cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	id := r.seq
	m, ok := r.subs[address]
	if !ok {
		m = make(map[uint64]func(preview.RegistryEvent))
		r.subs[address] = m
	}
	m[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.subs[address], id)
			if len(r.subs[address]) == 0 {
				delete(r.subs, address)
			}
		})
	}
}

// Subscribers 指定地址的订阅数
func (r *Registry) Subscribers(address string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs[address])
}

// Logins 已持久化的登录记录
func (r *Registry) Logins(ctx context.Context) ([]*Login, error) {
	out := make([]*Login, 0, 8)
	if r.store == nil {
		r.entries.Range(func(address string, e entry) bool {
			out = append(out, &Login{Address: address, Username: e.creds.Username, IsOnline: true})
			return true
		})
		return out, nil
	}
	if err := r.store.Find(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// onException 网关异常只转发给当前仍有效的身份
func (r *Registry) onException(ev preview.ExceptionEvent) {
	address := ev.Identity.Address
	e, ok := r.entries.Load(address)
	if !ok || e.id != ev.Identity {
		slog.Debug("忽略过期身份的异常", "address", address, "kind", ev.Kind)
		return
	}

	r.setOnline(context.Background(), address, ev.Kind == preview.ExceptionReconnected)
	r.notify(preview.RegistryEvent{Address: address, Exception: &ev})
}

func (r *Registry) setOnline(ctx context.Context, address string, online bool) {
	if r.store == nil {
		return
	}
	if err := r.store.SetOnline(ctx, address, online); err != nil {
		slog.ErrorContext(ctx, "更新在线状态失败", "err", err, "address", address)
	}
}

// notify 订阅者回调只做投递，不阻塞发布方
func (r *Registry) notify(ev preview.RegistryEvent) {
	r.mu.Lock()
	fns := make([]func(preview.RegistryEvent), 0, len(r.subs[ev.Address]))
	for _, fn := range r.subs[ev.Address] {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
