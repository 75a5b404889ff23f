package preview

import (
	"sync/atomic"
	"weak"

	"github.com/gowvp/livepreview/pkg/strand"
)

// observerRef 每次 Attach 生成新的引用，派发时比较指针判断是否仍然有效
type observerRef struct {
	load func() Observer
}

// Dispatcher 将通知投递到固定的执行上下文
//
// 只持有观察者的非拥有引用：解除注册或被回收后通知被静默丢弃。
type Dispatcher struct {
	exec strand.Executor
	ref  atomic.Pointer[observerRef]
}

func NewDispatcher(exec strand.Executor) *Dispatcher {
	if exec == nil {
		exec = strand.Default()
	}
	return &Dispatcher{exec: exec}
}

// Attach 注册观察者，返回解除注册函数
func (d *Dispatcher) Attach(o Observer) (detach func()) {
	if o == nil {
		d.ref.Store(nil)
		return func() {}
	}
	ref := observerRef{load: func() Observer { return o }}
	d.ref.Store(&ref)
	return func() { d.ref.CompareAndSwap(&ref, nil) }
}

// AttachWeak 以弱引用注册观察者，观察者被其所有者丢弃后不再收到通知
func AttachWeak[T any, P interface {
	*T
	Observer
}](d *Dispatcher, o P) (detach func()) {
	wp := weak.Make((*T)(o))
	ref := observerRef{load: func() Observer {
		if v := wp.Value(); v != nil {
			return P(v)
		}
		return nil
	}}
	d.ref.Store(&ref)
	return func() { d.ref.CompareAndSwap(&ref, nil) }
}

// Detach 解除当前观察者
func (d *Dispatcher) Detach() {
	d.ref.Store(nil)
}

func (d *Dispatcher) emit(fn func(Observer)) {
	ref := d.ref.Load()
	if ref == nil {
		return
	}
	d.exec.Post(func() {
		if d.ref.Load() != ref {
			return
		}
		if o := ref.load(); o != nil {
			fn(o)
		}
	})
}

func (d *Dispatcher) Error(err error) { d.emit(func(o Observer) { o.OnError(err) }) }
func (d *Dispatcher) StartPlay()      { d.emit(func(o Observer) { o.OnStartPlay() }) }
func (d *Dispatcher) StopPlay()       { d.emit(func(o Observer) { o.OnStopPlay() }) }
func (d *Dispatcher) Reconnect()      { d.emit(func(o Observer) { o.OnReconnect() }) }
func (d *Dispatcher) ReconnectSuccess() {
	d.emit(func(o Observer) { o.OnReconnectSuccess() })
}
