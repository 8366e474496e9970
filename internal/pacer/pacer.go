// Package pacer paces and retries calls to the storage backend. It is a
// reconstruction of the teacher's lib/pacer package: the retrieval pack
// kept only that package's test file (lib/pacer/pacer_test.go), not its
// implementation, so this is built to satisfy the documented contract of
// that test rather than copied from source. The shape — a single-token
// rate limiter plus an optional bounded connection-concurrency limiter,
// driven by a pluggable backoff Calculator — matches how the teacher's GCS
// backend uses it: `fs.NewPacer(ctx, pacer.NewS3(pacer.MinSleep(minSleep)))`.
package pacer

import (
	"sync"
	"time"
)

// State carries the pacer's current sleep time and the number of
// consecutive retries observed, which a Calculator consults to decide the
// next sleep duration.
type State struct {
	SleepTime          time.Duration
	ConsecutiveRetries int
}

// Calculator computes the next sleep duration for the pacer's channel
// given the current State.
type Calculator interface {
	Calculate(state State) time.Duration
}

// Paced is the signature of a function the Pacer can call: it returns
// whether the call should be retried and the error to propagate.
type Paced func() (retry bool, err error)

// Pacer paces calls and retries failed ones, serialized by a single
// channel token so only one backoff decision happens at a time, with an
// optional separate limit on concurrent in-flight calls.
type Pacer struct {
	mu             sync.Mutex
	pacer          chan struct{}
	connTokens     chan struct{}
	retries        int
	maxConnections int
	calculator     Calculator
	state          State
}

// Option configures a Pacer at construction time.
type Option func(*Pacer)

// RetriesOption sets the maximum number of attempts Call will make.
func RetriesOption(retries int) Option {
	return func(p *Pacer) { p.retries = retries }
}

// MaxConnectionsOption bounds the number of calls in flight at once. 0 (the
// default) means unbounded.
func MaxConnectionsOption(n int) Option {
	return func(p *Pacer) { p.setMaxConnections(n) }
}

// CalculatorOption overrides the default backoff Calculator.
func CalculatorOption(c Calculator) Option {
	return func(p *Pacer) { p.calculator = c }
}

// New builds a Pacer. The default Calculator is Default{} with its
// built-in constants; the default retry count is 10.
func New(options ...Option) *Pacer {
	p := &Pacer{
		pacer:   make(chan struct{}, 1),
		retries: 10,
	}
	p.calculator = NewDefault()
	for _, o := range options {
		o(p)
	}
	p.pacer <- struct{}{}
	return p
}

// SetMaxConnections changes the concurrency limit; 0 disables it.
func (p *Pacer) SetMaxConnections(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setMaxConnections(n)
}

func (p *Pacer) setMaxConnections(n int) {
	p.maxConnections = n
	if n <= 0 {
		p.connTokens = nil
		return
	}
	p.connTokens = make(chan struct{}, n)
	for i := 0; i < n; i++ {
		p.connTokens <- struct{}{}
	}
}

// SetRetries changes the number of attempts Call will make.
func (p *Pacer) SetRetries(retries int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.retries = retries
}

// beginCall waits its turn: first the single pacer token (released after
// the previous call's backoff has been scheduled), then a connection
// token if concurrency is bounded.
func (p *Pacer) beginCall() {
	<-p.pacer
	if p.connTokens != nil {
		<-p.connTokens
	}
}

// endCall returns the connection token (if any) and schedules the next
// pacer token after a delay computed from the Calculator, updating the
// consecutive-retry count.
func (p *Pacer) endCall(retry bool, err error) {
	if p.connTokens != nil {
		p.connTokens <- struct{}{}
	}
	p.mu.Lock()
	if retry {
		p.state.ConsecutiveRetries++
	} else {
		p.state.ConsecutiveRetries = 0
	}
	sleep := p.calculator.Calculate(p.state)
	p.state.SleepTime = sleep
	p.mu.Unlock()
	go func() {
		if sleep > 0 {
			time.Sleep(sleep)
		}
		p.pacer <- struct{}{}
	}()
}

// call attempts fn up to maxTries times, pacing and backing off between
// attempts, stopping early if fn reports it should not be retried.
func (p *Pacer) call(fn Paced, maxTries int) (err error) {
	var retry bool
	for try := 0; try < maxTries; try++ {
		p.beginCall()
		retry, err = fn()
		p.endCall(retry, err)
		if !retry {
			return err
		}
	}
	return err
}

// Call attempts fn up to the Pacer's configured retry count.
func (p *Pacer) Call(fn Paced) error {
	p.mu.Lock()
	retries := p.retries
	p.mu.Unlock()
	return p.call(fn, retries)
}

// CallNoRetry attempts fn exactly once.
func (p *Pacer) CallNoRetry(fn Paced) error {
	return p.call(fn, 1)
}
