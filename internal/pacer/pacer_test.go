package pacer

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecay(t *testing.T) {
	c := NewDefault(MinSleep(10*time.Millisecond), MaxSleep(1*time.Second), DecayConstant(2))
	for _, test := range []struct {
		sleep time.Duration
		want  time.Duration
	}{
		{0, 10 * time.Millisecond},
		{10 * time.Millisecond, 10 * time.Millisecond},
		{40 * time.Millisecond, 30 * time.Millisecond},
		{1 * time.Second, 750 * time.Millisecond},
		{2 * time.Second, 1 * time.Second},
	} {
		got := c.Calculate(State{SleepTime: test.sleep, ConsecutiveRetries: 0})
		assert.Equal(t, test.want, got, "sleep=%s", test.sleep)
	}
}

func TestAttack(t *testing.T) {
	c := NewDefault(MinSleep(10*time.Millisecond), MaxSleep(1*time.Second), AttackConstant(1))
	for _, test := range []struct {
		sleep time.Duration
		want  time.Duration
	}{
		{0, 10 * time.Millisecond},
		{10 * time.Millisecond, 20 * time.Millisecond},
		{500 * time.Millisecond, 1 * time.Second},
		{1 * time.Second, 1 * time.Second},
	} {
		got := c.Calculate(State{SleepTime: test.sleep, ConsecutiveRetries: 1})
		assert.Equal(t, test.want, got, "sleep=%s", test.sleep)
	}
}

func TestAttackZeroConstantJumpsToMax(t *testing.T) {
	c := NewDefault(MinSleep(10*time.Millisecond), MaxSleep(1*time.Second), AttackConstant(0))
	got := c.Calculate(State{SleepTime: 10 * time.Millisecond, ConsecutiveRetries: 1})
	assert.Equal(t, 1*time.Second, got)
}

func TestS3DecaysToZeroNearFloor(t *testing.T) {
	c := NewS3(MinSleep(10*time.Millisecond), MaxSleep(1*time.Second), DecayConstant(2))
	for _, test := range []struct {
		sleep time.Duration
		want  time.Duration
	}{
		{0, 0},
		{10 * time.Millisecond, 0},
		{12 * time.Millisecond, 0},
		{48 * time.Millisecond, 36 * time.Millisecond},
		{1 * time.Second, 750 * time.Millisecond},
	} {
		got := c.Calculate(State{SleepTime: test.sleep, ConsecutiveRetries: 0})
		assert.Equal(t, test.want, got, "sleep=%s", test.sleep)
	}
}

func TestS3AttacksLikeDefault(t *testing.T) {
	c := NewS3(MinSleep(10*time.Millisecond), MaxSleep(1*time.Second), AttackConstant(1))
	got := c.Calculate(State{SleepTime: 750 * time.Millisecond, ConsecutiveRetries: 1})
	assert.Equal(t, 1*time.Second, got)
}

func TestBeginCallZeroConnections(t *testing.T) {
	p := New(MaxConnectionsOption(0))
	done := make(chan struct{})
	go func() {
		p.beginCall()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("beginCall should not block with no connection limit")
	}
}

func TestBeginCall(t *testing.T) {
	p := New(MaxConnectionsOption(1))
	p.beginCall()
	blocked := make(chan struct{})
	go func() {
		p.beginCall()
		close(blocked)
	}()
	select {
	case <-blocked:
		t.Fatal("beginCall should block when the single connection token is held")
	case <-time.After(20 * time.Millisecond):
	}
	p.endCall(false, nil)
	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("beginCall should unblock once endCall returns the token")
	}
}

func TestEndCall(t *testing.T) {
	p := New(MaxConnectionsOption(1), CalculatorOption(NewDefault(MinSleep(0))))
	p.beginCall()
	p.endCall(false, nil)
	select {
	case <-p.connTokens:
	default:
		t.Fatal("connection token should have been returned by endCall")
	}
}

func TestEndCallZeroConnections(t *testing.T) {
	p := New(MaxConnectionsOption(0))
	p.beginCall()
	assert.NotPanics(t, func() { p.endCall(false, nil) })
}

func waitForToken(t *testing.T, p *Pacer) {
	t.Helper()
	select {
	case <-p.pacer:
		p.pacer <- struct{}{}
	case <-time.After(time.Second):
		t.Fatal("pacer token never became available")
	}
}

func TestCallFixed(t *testing.T) {
	p := New(RetriesOption(3), CalculatorOption(NewDefault(MinSleep(0))))
	var calls int32
	err := p.Call(func() (bool, error) {
		atomic.AddInt32(&calls, 1)
		return false, nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls)
	waitForToken(t, p)
}

func Test_callRetry(t *testing.T) {
	p := New(RetriesOption(5), CalculatorOption(NewDefault(MinSleep(0))))
	var calls int32
	wantErr := errors.New("boom")
	err := p.Call(func() (bool, error) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			return true, wantErr
		}
		return false, nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls)
	waitForToken(t, p)
}

func TestCall(t *testing.T) {
	p := New(RetriesOption(2), CalculatorOption(NewDefault(MinSleep(0))))
	wantErr := errors.New("still failing")
	var calls int32
	err := p.Call(func() (bool, error) {
		atomic.AddInt32(&calls, 1)
		return true, wantErr
	})
	assert.Equal(t, wantErr, err)
	assert.EqualValues(t, 2, calls)
	waitForToken(t, p)
}

func TestCallNoRetry(t *testing.T) {
	p := New(RetriesOption(5), CalculatorOption(NewDefault(MinSleep(0))))
	var calls int32
	wantErr := errors.New("once")
	err := p.CallNoRetry(func() (bool, error) {
		atomic.AddInt32(&calls, 1)
		return true, wantErr
	})
	assert.Equal(t, wantErr, err)
	assert.EqualValues(t, 1, calls)
	waitForToken(t, p)
}

func TestCallParallel(t *testing.T) {
	p := New(RetriesOption(1), MaxConnectionsOption(4), CalculatorOption(NewDefault(MinSleep(0))))
	var wg sync.WaitGroup
	var calls int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Call(func() (bool, error) {
				atomic.AddInt32(&calls, 1)
				return false, nil
			})
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 20, calls)
}

func TestSetRetriesAndMaxConnections(t *testing.T) {
	p := New()
	p.SetRetries(7)
	assert.Equal(t, 7, p.retries)
	p.SetMaxConnections(3)
	assert.Equal(t, 3, p.maxConnections)
	assert.Len(t, p.connTokens, 3)
}
