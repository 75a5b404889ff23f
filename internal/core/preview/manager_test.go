package preview

import (
	"context"
	"testing"
	"time"

	"github.com/gowvp/livepreview/pkg/strand"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager(t *testing.T) {
	gw := newFakeGateway()
	m := NewManager(gw, newFakeRegistry(gw), Options{RetryDelay: time.Hour, Notify: strand.New()})

	a := m.Create()
	b := m.Create()
	require.NotEqual(t, a.ID(), b.ID())

	got, ok := m.Get(a.ID())
	require.True(t, ok)
	assert.Same(t, a, got)
	assert.Len(t, m.List(), 2)

	assert.True(t, m.Release(a.ID()))
	assert.False(t, m.Release(a.ID()))
	<-a.Done()
	_, ok = m.Get(a.ID())
	assert.False(t, ok)

	b.Init(intentA)
	b.SetSurface(StreamSink("live/b"))
	b.StartPlay()
	require.Eventually(t, func() bool { return b.Phase() == PhasePlaying }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Close(ctx))
	assert.Empty(t, m.List())

	_, _, _, _, open := gw.counts()
	assert.Zero(t, open)
}
