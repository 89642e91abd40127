package debounce

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncer_OnlyLastCallFires(t *testing.T) {
	d := New(30 * time.Millisecond)

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})

	for _, q := range []string{"a", "ap", "app", "appl"} {
		q := q
		d.Call(func() {
			mu.Lock()
			got = append(got, q)
			mu.Unlock()
			close(done)
		})
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("debounced call never fired")
	}
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"appl"}, got)
	assert.False(t, d.Pending())
}

func TestDebouncer_Cancel(t *testing.T) {
	d := New(20 * time.Millisecond)
	var fired atomic.Int32
	d.Call(func() { fired.Add(1) })
	assert.True(t, d.Pending())
	assert.True(t, d.Cancel())
	assert.False(t, d.Cancel())

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, fired.Load())
}

func TestKeyed_IndependentSlots(t *testing.T) {
	k := NewKeyed(20 * time.Millisecond)
	var a, b atomic.Int32
	k.Call("s1", func() { a.Add(1) })
	k.Call("s1", func() { a.Add(1) })
	k.Call("s2", func() { b.Add(1) })

	assert.Eventually(t, func() bool { return a.Load() == 1 && b.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(1), a.Load())

	k.Call("s3", func() { a.Add(10) })
	k.Cancel("s3")
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(1), a.Load())
}

func TestDebouncer_ScheduleReportsDropped(t *testing.T) {
	d := New(20 * time.Millisecond)
	var fired, dropped atomic.Int32

	d.Schedule(func() { fired.Add(1) }, func() { dropped.Add(1) })
	d.Schedule(func() { fired.Add(10) }, func() { dropped.Add(10) })

	assert.Eventually(t, func() bool { return fired.Load() == 10 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), dropped.Load(), "only the replaced call is dropped")

	d.Schedule(func() { fired.Add(100) }, func() { dropped.Add(100) })
	d.Cancel()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(10), fired.Load())
	assert.Equal(t, int32(101), dropped.Load())
}

func TestKeyed_CancelAll(t *testing.T) {
	k := NewKeyed(20 * time.Millisecond)
	var fired, dropped atomic.Int32
	k.Schedule("a", func() { fired.Add(1) }, func() { dropped.Add(1) })
	k.Schedule("b", func() { fired.Add(1) }, func() { dropped.Add(1) })
	k.CancelAll()

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, fired.Load())
	assert.Equal(t, int32(2), dropped.Load())
}
