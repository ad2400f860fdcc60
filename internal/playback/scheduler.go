package playback

import "time"

// StepScheduler queues frame requests until Step is called. It gives tests
// and offline simulation full control over frame timing.
type StepScheduler struct {
	pending []FrameFunc
}

// RequestFrame queues fn for the next Step.
func (s *StepScheduler) RequestFrame(fn FrameFunc) {
	s.pending = append(s.pending, fn)
}

// Pending returns the number of queued frames.
func (s *StepScheduler) Pending() int {
	return len(s.pending)
}

// Step runs every frame queued before the call and returns how many ran.
// Frames requested during the step are deferred to the next one.
func (s *StepScheduler) Step(now time.Time) int {
	frames := s.pending
	s.pending = nil
	for _, fn := range frames {
		fn(now)
	}
	return len(frames)
}
