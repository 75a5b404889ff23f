package preview

import (
	"runtime"
	"testing"
	"time"

	"github.com/gowvp/livepreview/pkg/strand"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherDeliversInOrder(t *testing.T) {
	exec := strand.New()
	d := NewDispatcher(exec)
	rec := &recorder{}
	d.Attach(rec)

	d.StartPlay()
	d.StopPlay()
	d.Reconnect()
	d.ReconnectSuccess()
	d.Error(ErrPlayFailed)
	exec.Wait()

	assert.Equal(t, []string{"start", "stop", "reconnect", "reconnected", "error:play_failed"}, rec.list())
}

func TestDispatcherDetachDropsQueued(t *testing.T) {
	exec := strand.New()
	d := NewDispatcher(exec)
	rec := &recorder{}

	block := make(chan struct{})
	exec.Post(func() { <-block })

	detach := d.Attach(rec)
	d.StartPlay()
	detach()
	d.StopPlay()
	close(block)
	exec.Wait()

	assert.Empty(t, rec.list())
}

func TestDispatcherStaleDetachKeepsNewObserver(t *testing.T) {
	exec := strand.New()
	d := NewDispatcher(exec)
	first, second := &recorder{}, &recorder{}

	detach := d.Attach(first)
	d.Attach(second)
	detach()

	d.StartPlay()
	exec.Wait()
	assert.Empty(t, first.list())
	assert.Equal(t, []string{"start"}, second.list())
}

func TestDispatcherWithoutObserver(t *testing.T) {
	exec := strand.New()
	d := NewDispatcher(exec)
	d.Attach(nil)
	d.StartPlay()
	exec.Wait()
}

func TestAttachWeakDropsCollectedObserver(t *testing.T) {
	exec := strand.New()
	d := NewDispatcher(exec)

	func() {
		rec := &recorder{}
		AttachWeak(d, rec)
		d.StartPlay()
		exec.Wait()
		require.Equal(t, []string{"start"}, rec.list())
	}()

	require.Eventually(t, func() bool {
		runtime.GC()
		ref := d.ref.Load()
		return ref != nil && ref.load() == nil
	}, 2*time.Second, 10*time.Millisecond)

	// 观察者已回收，投递静默丢弃
	d.StopPlay()
	exec.Wait()
}
