package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wwise-tools/wwise-mcp/pkg/waapi"
)

func popWithin(t *testing.T, q *timedQueue, d time.Duration) *Request {
	t.Helper()
	stopCh := make(chan struct{})
	done := make(chan *Request, 1)
	go func() {
		req, ok := q.PopDue(stopCh, 10*time.Millisecond)
		if ok {
			done <- req
		}
	}()
	select {
	case req := <-done:
		return req
	case <-time.After(d):
		close(stopCh)
		t.Fatal("no request became due in time")
		return nil
	}
}

func TestQueueOrdersByDueTime(t *testing.T) {
	q := newTimedQueue(16)
	now := time.Now()

	late := newFireAndForget("late", nil, nil, now.Add(30*time.Millisecond))
	early := newFireAndForget("early", nil, nil, now)
	require.NoError(t, q.Put(late))
	require.NoError(t, q.Put(early))

	assert.Equal(t, "early", popWithin(t, q, time.Second).URI)
	assert.Equal(t, "late", popWithin(t, q, time.Second).URI)
}

func TestQueuePreservesFIFOAmongEqualDueTimes(t *testing.T) {
	q := newTimedQueue(16)
	due := time.Now()

	for _, uri := range []string{"first", "second", "third"} {
		require.NoError(t, q.Put(newFireAndForget(uri, nil, nil, due)))
	}

	assert.Equal(t, "first", popWithin(t, q, time.Second).URI)
	assert.Equal(t, "second", popWithin(t, q, time.Second).URI)
	assert.Equal(t, "third", popWithin(t, q, time.Second).URI)
}

func TestQueueRejectsWhenFull(t *testing.T) {
	q := newTimedQueue(2)
	now := time.Now()

	require.NoError(t, q.Put(newFireAndForget("a", nil, nil, now)))
	require.NoError(t, q.Put(newFireAndForget("b", nil, nil, now)))

	err := q.Put(newFireAndForget("c", nil, nil, now))
	require.Error(t, err)

	var full *waapi.QueueFullError
	require.ErrorAs(t, err, &full)
	assert.Equal(t, 2, full.Size)
	assert.Equal(t, 2, full.Max)
	assert.Equal(t, 2, q.Size())
}

func TestQueueFutureRequestNotPoppedEarly(t *testing.T) {
	q := newTimedQueue(16)
	require.NoError(t, q.Put(newFireAndForget("future", nil, nil, time.Now().Add(time.Hour))))

	stopCh := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, ok := q.PopDue(stopCh, 10*time.Millisecond)
		assert.False(t, ok)
	}()

	// Nothing should come due; the consumer must still stop promptly.
	time.Sleep(50 * time.Millisecond)
	close(stopCh)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PopDue did not return after stop")
	}
	assert.Equal(t, 1, q.Size())
}

func TestQueuePutWakesWaitingConsumer(t *testing.T) {
	q := newTimedQueue(16)
	stopCh := make(chan struct{})
	defer close(stopCh)

	done := make(chan *Request, 1)
	go func() {
		// Long poll: a wakeup must come from Put, not the poll timer.
		if req, ok := q.PopDue(stopCh, time.Minute); ok {
			done <- req
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Put(newFireAndForget("wake", nil, nil, time.Now())))

	select {
	case req := <-done:
		assert.Equal(t, "wake", req.URI)
	case <-time.After(time.Second):
		t.Fatal("Put did not wake the consumer")
	}
}

func TestQueueDrainAll(t *testing.T) {
	q := newTimedQueue(16)
	now := time.Now()
	require.NoError(t, q.Put(newFireAndForget("b", nil, nil, now.Add(time.Hour))))
	require.NoError(t, q.Put(newFireAndForget("a", nil, nil, now)))

	drained := q.DrainAll()
	require.Len(t, drained, 2)
	assert.Equal(t, "a", drained[0].URI)
	assert.Equal(t, "b", drained[1].URI)
	assert.Equal(t, 0, q.Size())
}
