package reconcile

import "sync"

// loop runs closures one at a time on a single goroutine.
//
// Everything that touches a session's view or bookkeeping goes through
// it, so those call sites never race each other. Remote calls never run
// on the loop; their completions are posted back.
type loop struct {
	ops  chan func()
	done chan struct{}
	once sync.Once
}

func newLoop() *loop {
	l := &loop{
		ops:  make(chan func()),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *loop) run() {
	for {
		select {
		case fn := <-l.ops:
			fn()
		case <-l.done:
			return
		}
	}
}

// call runs fn on the loop and waits for it. It reports false, without
// running fn, once the loop is stopped. Never call it from inside the loop.
func (l *loop) call(fn func()) bool {
	finished := make(chan struct{})
	select {
	case l.ops <- func() { fn(); close(finished) }:
	case <-l.done:
		return false
	}
	// The loop received the closure and always runs it to completion
	// before looking at done again.
	<-finished
	return true
}

// stop ends the loop. Safe to call more than once.
func (l *loop) stop() {
	l.once.Do(func() { close(l.done) })
}
