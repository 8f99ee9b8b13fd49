package gui

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) (*Loop, *logtest.Hook) {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	l := NewLoop(logger, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return l, hook
}

func TestLoop(t *testing.T) {
	t.Run("runs posted tasks in order", func(t *testing.T) {
		l, _ := startLoop(t)
		var got []int
		for i := 0; i < 100; i++ {
			i := i
			l.Post(func() { got = append(got, i) })
		}
		require.NoError(t, l.Call(context.Background(), func() {}))
		require.Len(t, got, 100)
		for i, v := range got {
			assert.Equal(t, i, v)
		}
	})

	t.Run("post never blocks before the loop runs", func(t *testing.T) {
		logger, _ := logtest.NewNullLogger()
		l := NewLoop(logger, nil)
		for i := 0; i < 10000; i++ {
			l.Post(func() {})
		}
		assert.Equal(t, 10000, l.Pending())
	})

	t.Run("concurrent posters", func(t *testing.T) {
		l, _ := startLoop(t)
		count := 0
		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					l.Post(func() { count++ })
				}
			}()
		}
		wg.Wait()
		require.NoError(t, l.Call(context.Background(), func() {}))
		assert.Equal(t, 400, count)
	})

	t.Run("recovers from a panicking task", func(t *testing.T) {
		l, hook := startLoop(t)
		l.Post(func() { panic("boom") })
		ran := false
		require.NoError(t, l.Call(context.Background(), func() { ran = true }))
		assert.True(t, ran)
		require.NotNil(t, hook.LastEntry())
		assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	})

	t.Run("call fails after the loop stops", func(t *testing.T) {
		logger, _ := logtest.NewNullLogger()
		l := NewLoop(logger, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.ErrorIs(t, l.Run(ctx), context.Canceled)

		err := l.Call(context.Background(), func() {})
		assert.ErrorIs(t, err, ErrLoopStopped)
	})

	t.Run("call honours its context", func(t *testing.T) {
		logger, _ := logtest.NewNullLogger()
		l := NewLoop(logger, nil)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, l.Call(ctx, func() {}), context.DeadlineExceeded)
	})
}

func TestStringVarAndLabels(t *testing.T) {
	v := NewStringVar("Bus 101 waiting...")
	var seen []string
	v.Trace(func(s string) { seen = append(seen, s) })
	v.Set("moving")
	assert.Equal(t, "moving", v.Get())
	assert.Equal(t, []string{"moving"}, seen)

	p := NewLabels()
	p.Pack("101", v)
	p.Pack("102", NewStringVar("Bus 102 waiting..."))
	assert.Equal(t, []Label{
		{Name: "101", Text: "moving"},
		{Name: "102", Text: "Bus 102 waiting..."},
	}, p.Snapshot())
}

func TestScale(t *testing.T) {
	s := NewScale(1, 10, 5)
	assert.Equal(t, 5.0, s.Value())
	assert.Equal(t, 10.0, s.Set(42))
	assert.Equal(t, 1.0, s.Set(-3))
	assert.Equal(t, 7.5, s.Set(7.5))
	assert.Equal(t, 7.5, s.Value())
}

func TestDialog(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	d := NewDialog(logger, 2)

	_, ok := d.Last()
	assert.False(t, ok)

	d.ShowInfo("a", "1")
	d.ShowInfo("b", "2")
	d.ShowInfo("c", "3")

	last, ok := d.Last()
	require.True(t, ok)
	assert.Equal(t, Message{Title: "c", Body: "3"}, last)
	assert.Len(t, d.History(), 2)
	assert.Equal(t, 3, d.Shown())
	assert.Equal(t, "c", hook.LastEntry().Data["title"])
}
