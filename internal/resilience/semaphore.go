package resilience

import "context"

// Semaphore bounds concurrent access to a resource (the OCR concurrency limit
// in spec §4.3/§5), implemented as a buffered channel per the teacher's
// preference for plain channel-based primitives over a sync package type.
type Semaphore struct {
	slots chan struct{}
}

// NewSemaphore creates a semaphore with the given capacity.
func NewSemaphore(capacity int) *Semaphore {
	if capacity < 1 {
		capacity = 1
	}
	return &Semaphore{slots: make(chan struct{}, capacity)}
}

// Acquire blocks until a slot is free or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot acquired by Acquire.
func (s *Semaphore) Release() {
	<-s.slots
}
