package aquamarine

// Signal is a minimal generic pub/sub primitive: zero or more listeners
// subscribe with Listen, and Emit calls each of them in subscription
// order. The core is single-threaded and cooperative (spec.md §5), so
// no locking is needed here.
type Signal[T any] struct {
	listeners []func(T)
}

// Listen registers fn to be called on every future Emit. The returned
// function removes the listener again.
func (s *Signal[T]) Listen(fn func(T)) (remove func()) {
	idx := len(s.listeners)
	s.listeners = append(s.listeners, fn)
	return func() {
		if idx < len(s.listeners) {
			s.listeners[idx] = nil
		}
	}
}

// Emit calls every still-registered listener with payload, in
// subscription order.
func (s *Signal[T]) Emit(payload T) {
	for _, fn := range s.listeners {
		if fn != nil {
			fn(payload)
		}
	}
}

// idleQueue holds callbacks scheduled to run after the current event
// dispatch finishes (spec.md §4.G, §5): scheduleFrame() enqueues here so
// a frame event never nests inside dispatchEvents' own call stack.
type idleQueue struct {
	callbacks []func()
}

func (q *idleQueue) add(fn func()) {
	q.callbacks = append(q.callbacks, fn)
}

// drain runs and clears every queued callback, FIFO. Callbacks that
// enqueue more callbacks while running are also drained, matching "run
// and clear all queued idle callbacks" in spec.md §4.G.
func (q *idleQueue) drain() {
	for len(q.callbacks) > 0 {
		cb := q.callbacks[0]
		q.callbacks = q.callbacks[1:]
		cb()
	}
}
