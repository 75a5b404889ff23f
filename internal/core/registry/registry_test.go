package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gowvp/livepreview/internal/core/preview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct {
	preview.Gateway

	mu        sync.Mutex
	logouts   []preview.Identity
	logoutErr error
	handler   func(preview.ExceptionEvent)
}

func (g *stubGateway) Logout(_ context.Context, id preview.Identity) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.logouts = append(g.logouts, id)
	return g.logoutErr
}

func (g *stubGateway) SetExceptionHandler(fn func(preview.ExceptionEvent)) {
	g.handler = fn
}

type memStore struct {
	mu     sync.Mutex
	logins map[string]*Login
}

func (m *memStore) Save(_ context.Context, l *Login) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := *l
	m.logins[l.Address] = &v
	return nil
}

func (m *memStore) SetOnline(_ context.Context, address string, online bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.logins[address]; ok {
		l.IsOnline = online
	}
	return nil
}

func (m *memStore) Find(_ context.Context, out *[]*Login) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.logins {
		v := *l
		*out = append(*out, &v)
	}
	return nil
}

func (m *memStore) online(address string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logins[address].IsOnline
}

type collector struct {
	mu     sync.Mutex
	events []preview.RegistryEvent
}

func (c *collector) fn(ev preview.RegistryEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) list() []preview.RegistryEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]preview.RegistryEvent(nil), c.events...)
}

const addr = "192.168.1.64:80"

func TestRegistryPublishFanOut(t *testing.T) {
	gw := &stubGateway{}
	store := &memStore{logins: map[string]*Login{}}
	r := NewRegistry(gw, store)

	var a, b, other collector
	cancelA := r.Subscribe(addr, a.fn)
	r.Subscribe(addr, b.fn)
	r.Subscribe("10.0.0.1:80", other.fn)
	require.Equal(t, 2, r.Subscribers(addr))

	id := preview.Identity{Address: addr, Token: "t1"}
	creds := preview.Credentials{Username: "admin", Password: "pw"}
	r.Publish(context.Background(), id, creds)

	got, gotCreds, ok := r.Lookup(addr)
	require.True(t, ok)
	assert.Equal(t, id, got)
	assert.Equal(t, creds, gotCreds)

	require.Len(t, a.list(), 1)
	require.Len(t, b.list(), 1)
	assert.Empty(t, other.list())
	assert.Equal(t, id, *a.list()[0].Identity)

	cancelA()
	cancelA()
	assert.Equal(t, 1, r.Subscribers(addr))

	logins, err := r.Logins(context.Background())
	require.NoError(t, err)
	require.Len(t, logins, 1)
	assert.Equal(t, "admin", logins[0].Username)
	assert.True(t, logins[0].IsOnline)
}

func TestRegistryLogout(t *testing.T) {
	gw := &stubGateway{}
	store := &memStore{logins: map[string]*Login{}}
	r := NewRegistry(gw, store)
	var c collector
	r.Subscribe(addr, c.fn)

	require.NoError(t, r.Logout(context.Background(), addr))
	assert.Empty(t, c.list())

	id := preview.Identity{Address: addr, Token: "t1"}
	r.Publish(context.Background(), id, preview.Credentials{Username: "admin", Password: "pw"})
	require.NoError(t, r.Logout(context.Background(), addr))

	_, _, ok := r.Lookup(addr)
	assert.False(t, ok)
	assert.Equal(t, []preview.Identity{id}, gw.logouts)
	events := c.list()
	require.Len(t, events, 2)
	assert.Nil(t, events[1].Identity)
	assert.False(t, store.online(addr))
}

func TestRegistryLogoutGatewayError(t *testing.T) {
	gw := &stubGateway{logoutErr: errors.New("closed")}
	r := NewRegistry(gw, nil)
	r.Publish(context.Background(), preview.Identity{Address: addr, Token: "t1"}, preview.Credentials{})

	err := r.Logout(context.Background(), addr)
	require.Error(t, err)
	_, _, ok := r.Lookup(addr)
	assert.False(t, ok)
}

func TestRegistryRelaysExceptionForCurrentIdentity(t *testing.T) {
	gw := &stubGateway{}
	store := &memStore{logins: map[string]*Login{}}
	r := NewRegistry(gw, store)
	require.NotNil(t, gw.handler)

	var c collector
	r.Subscribe(addr, c.fn)
	id := preview.Identity{Address: addr, Token: "t1"}
	r.Publish(context.Background(), id, preview.Credentials{Username: "admin", Password: "pw"})

	gw.handler(preview.ExceptionEvent{Kind: preview.ExceptionReconnecting, Identity: preview.Identity{Address: addr, Token: "old"}})
	require.Len(t, c.list(), 1)

	gw.handler(preview.ExceptionEvent{Kind: preview.ExceptionReconnecting, Identity: id})
	assert.False(t, store.online(addr))
	gw.handler(preview.ExceptionEvent{Kind: preview.ExceptionReconnected, Identity: id})
	assert.True(t, store.online(addr))

	events := c.list()
	require.Len(t, events, 3)
	assert.Equal(t, preview.ExceptionReconnecting, events[1].Exception.Kind)
	assert.Equal(t, preview.ExceptionReconnected, events[2].Exception.Kind)
}

func TestRegistryLoginsWithoutStore(t *testing.T) {
	r := NewRegistry(&stubGateway{}, nil)
	r.Publish(context.Background(), preview.Identity{Address: addr, Token: "t"}, preview.Credentials{Username: "u"})

	logins, err := r.Logins(context.Background())
	require.NoError(t, err)
	require.Len(t, logins, 1)
	assert.Equal(t, addr, logins[0].Address)
}
