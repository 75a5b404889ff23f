package preview

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gowvp/livepreview/pkg/strand"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu sync.Mutex

	loginFn     func(ctx context.Context, address, username, password string) (string, error)
	beforeStart func()
	startErrs   []error

	logins     []string
	logouts    []Identity
	starts     int
	stops      int
	reinits    int
	seq        int
	open       map[Handle]struct{}
	maxOpen    int
	onExcept   func(ExceptionEvent)
	lastSinkOn string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{open: make(map[Handle]struct{})}
}

func (f *fakeGateway) Login(ctx context.Context, address, username, password string) (string, error) {
	f.mu.Lock()
	f.logins = append(f.logins, address)
	fn := f.loginFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, address, username, password)
	}
	return fmt.Sprintf("%s/%s", address, username), nil
}

func (f *fakeGateway) Logout(_ context.Context, id Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts = append(f.logouts, id)
	return nil
}

func (f *fakeGateway) StartPreview(_ context.Context, _ Identity, req PreviewRequest) (Handle, error) {
	f.mu.Lock()
	fn := f.beforeStart
	f.mu.Unlock()
	if fn != nil {
		fn()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if len(f.startErrs) > 0 {
		err := f.startErrs[0]
		f.startErrs = f.startErrs[1:]
		return "", err
	}
	f.seq++
	h := Handle(fmt.Sprintf("h-%d", f.seq))
	f.open[h] = struct{}{}
	f.maxOpen = max(f.maxOpen, len(f.open))
	f.lastSinkOn = req.Surface.SinkName()
	return h, nil
}

func (f *fakeGateway) StopPreview(_ context.Context, h Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	delete(f.open, h)
	return nil
}

func (f *fakeGateway) Reinitialize(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reinits++
	return nil
}

func (f *fakeGateway) SetExceptionHandler(fn func(ExceptionEvent)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onExcept = fn
}

func (f *fakeGateway) logoutCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.logouts)
}

func (f *fakeGateway) failNextStarts(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startErrs = append(f.startErrs, errs...)
}

func (f *fakeGateway) counts() (logins, starts, stops, reinits, open int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.logins), f.starts, f.stops, f.reinits, len(f.open)
}

// fakeRegistry 内存注册中心，同步扇出
type fakeRegistry struct {
	mu      sync.Mutex
	gw      Gateway
	entries map[string]fakeEntry
	subs    map[string]map[int]func(RegistryEvent)
	seq     int
}

type fakeEntry struct {
	id    Identity
	creds Credentials
}

func newFakeRegistry(gw Gateway) *fakeRegistry {
	return &fakeRegistry{
		gw:      gw,
		entries: make(map[string]fakeEntry),
		subs:    make(map[string]map[int]func(RegistryEvent)),
	}
}

func (r *fakeRegistry) Lookup(address string) (Identity, Credentials, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[address]
	return e.id, e.creds, ok
}

func (r *fakeRegistry) Publish(_ context.Context, id Identity, creds Credentials) {
	r.mu.Lock()
	r.entries[id.Address] = fakeEntry{id: id, creds: creds}
	r.mu.Unlock()
	r.notify(RegistryEvent{Address: id.Address, Identity: &id})
}

func (r *fakeRegistry) Logout(ctx context.Context, address string) error {
	r.mu.Lock()
	e, ok := r.entries[address]
	delete(r.entries, address)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	_ = r.gw.Logout(ctx, e.id)
	r.notify(RegistryEvent{Address: address})
	return nil
}

func (r *fakeRegistry) Subscribe(address string, fn func(RegistryEvent)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	id := r.seq
	if r.subs[address] == nil {
		r.subs[address] = make(map[int]func(RegistryEvent))
	}
	r.subs[address][id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs[address], id)
	}
}

func (r *fakeRegistry) exception(kind ExceptionKind, id Identity) {
	r.notify(RegistryEvent{Address: id.Address, Exception: &ExceptionEvent{Kind: kind, Identity: id}})
}

func (r *fakeRegistry) subscribers(address string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs[address])
}

func (r *fakeRegistry) notify(ev RegistryEvent) {
	r.mu.Lock()
	fns := make([]func(RegistryEvent), 0, len(r.subs[ev.Address]))
	for _, fn := range r.subs[ev.Address] {
		fns = append(fns, fn)
	}
	r.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// recorder 记录观察者收到的通知
type recorder struct {
	mu     sync.Mutex
	events []string
	errs   []error
}

func (r *recorder) add(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) OnError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	kind := "unknown"
	if f, ok := err.(*Failure); ok {
		kind = f.Kind.String()
	}
	r.add("error:" + kind)
}

func (r *recorder) OnStartPlay()        { r.add("start") }
func (r *recorder) OnStopPlay()         { r.add("stop") }
func (r *recorder) OnReconnect()        { r.add("reconnect") }
func (r *recorder) OnReconnectSuccess() { r.add("reconnected") }

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) count(ev string) int {
	n := 0
	for _, v := range r.list() {
		if v == ev {
			n++
		}
	}
	return n
}

type harness struct {
	gw       *fakeGateway
	registry *fakeRegistry
	notify   *strand.Strand
	rec      *recorder
	s        *Session
}

func newHarness(t *testing.T, delay time.Duration) *harness {
	t.Helper()
	gw := newFakeGateway()
	reg := newFakeRegistry(gw)
	notify := strand.New()
	s := NewSession("s1", gw, reg, Options{RetryDelay: delay, Notify: notify})
	rec := &recorder{}
	s.Attach(rec)
	t.Cleanup(s.Release)
	return &harness{gw: gw, registry: reg, notify: notify, rec: rec, s: s}
}

// settle 等待串行路径与通知上下文清空
func (h *harness) settle() {
	h.s.worker.Wait()
	h.notify.Wait()
}

func (h *harness) identity() *Identity {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	return h.s.state.Identity
}

func (h *harness) loggedIn(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		h.s.mu.Lock()
		defer h.s.mu.Unlock()
		return h.s.state.Identity != nil && h.s.state.Config != nil
	}, 2*time.Second, 5*time.Millisecond)
	h.settle()
}

func (h *harness) waitEvents(t *testing.T, want ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		h.settle()
		return len(h.rec.list()) >= len(want)
	}, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, want, h.rec.list())
}
