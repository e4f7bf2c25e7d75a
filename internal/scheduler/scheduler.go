// Package scheduler debounces editor changes into compile requests and
// tracks which revision the preview currently shows.
//
// A Scheduler is not safe for concurrent use. It is owned by a single event
// loop; its debounce timer never touches state directly but hands a token
// back to the owner through the notify callback, and the owner calls Fire.
package scheduler

import (
	"time"

	"go.uber.org/zap"

	"go-live-preview/internal/contracts"
	"go-live-preview/internal/log"
)

// DefaultDelay is the quiet period after the last edit before compiling.
const DefaultDelay = 300 * time.Millisecond

// SubmitFunc hands a compile request to the transport. A returned error is
// treated like a compile error for that revision.
type SubmitFunc func(req contracts.CompileRequest) error

// Timer is the part of *time.Timer the scheduler needs.
type Timer interface {
	Stop() bool
}

// Clock starts debounce timers.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Status is a snapshot of the scheduler state.
type Status struct {
	Revision        uint64
	LatestSubmitted uint64
	LatestApplied   uint64
	Compiling       bool
	Err             string
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithDelay overrides DefaultDelay.
func WithDelay(d time.Duration) Option {
	return func(s *Scheduler) { s.delay = d }
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithFilePath sets the path sent along with each request.
func WithFilePath(path string) Option {
	return func(s *Scheduler) { s.filePath = path }
}

type Scheduler struct {
	delay    time.Duration
	clock    Clock
	submit   SubmitFunc
	notify   func(token uint64)
	logger   *zap.Logger
	filePath string

	timer      Timer
	token      uint64
	pending    string
	hasPending bool

	revision        uint64
	latestSubmitted uint64
	latestApplied   uint64
	floor           uint64
	full            bool
	compiling       bool
	err             string
}

// New creates a scheduler. notify is called from the timer goroutine when a
// debounce period ends; the owner must route the token back into Fire on its
// own goroutine.
func New(submit SubmitFunc, notify func(token uint64), opts ...Option) *Scheduler {
	s := &Scheduler{
		delay:  DefaultDelay,
		clock:  realClock{},
		submit: submit,
		notify: notify,
		logger: log.Get(),
		full:   true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetFilePath changes the path sent with later requests.
func (s *Scheduler) SetFilePath(path string) {
	s.filePath = path
}

// Edit records the latest content and restarts the debounce timer.
func (s *Scheduler) Edit(content string) {
	s.pending = content
	s.hasPending = true
	s.stopTimer()

	s.token++
	token := s.token
	s.timer = s.clock.AfterFunc(s.delay, func() {
		s.notify(token)
	})
}

// Fire submits the pending content if token belongs to the most recent
// timer. It reports whether a request was submitted.
func (s *Scheduler) Fire(token uint64) bool {
	if token != s.token || !s.hasPending {
		return false
	}
	s.timer = nil
	return s.submitPending()
}

// Flush submits pending content immediately, skipping the debounce delay.
func (s *Scheduler) Flush() bool {
	if !s.hasPending {
		return false
	}
	s.stopTimer()
	s.token++
	return s.submitPending()
}

func (s *Scheduler) submitPending() bool {
	content := s.pending
	s.pending = ""
	s.hasPending = false

	s.revision++
	s.latestSubmitted = s.revision
	s.compiling = true

	req := contracts.CompileRequest{
		Type:     contracts.MessageTypeCompile,
		Content:  content,
		Revision: s.revision,
		FilePath: s.filePath,
		Full:     s.full,
	}
	s.full = false
	s.logger.Debug("submitting compile", zap.Uint64("revision", req.Revision), zap.Int("bytes", len(content)))

	if err := s.submit(req); err != nil {
		s.logger.Warn("compile submission failed", zap.Uint64("revision", req.Revision), zap.Error(err))
		s.full = s.full || req.Full
		s.HandleError(&req.Revision, err.Error())
	}
	return true
}

// HandlePatch decides whether a patch for revision may be applied. Patches
// older than the last applied revision are dropped. Only a patch that catches
// up with the latest submission clears the error.
func (s *Scheduler) HandlePatch(revision uint64) bool {
	if revision < s.floor || revision < s.latestApplied {
		s.logger.Debug("dropping stale patch",
			zap.Uint64("revision", revision),
			zap.Uint64("applied", s.latestApplied))
		return false
	}
	s.latestApplied = revision
	if revision >= s.latestSubmitted {
		s.compiling = false
		s.err = ""
	}
	return true
}

// HandleError records a compile or submission failure. Errors for a revision
// older than the last applied one are dropped; an error with no revision
// always applies.
func (s *Scheduler) HandleError(revision *uint64, message string) bool {
	if revision != nil && (*revision < s.floor || *revision < s.latestApplied) {
		s.logger.Debug("dropping stale error", zap.Uint64("revision", *revision))
		return false
	}
	s.err = message
	if revision == nil || *revision >= s.latestSubmitted {
		s.compiling = false
	}
	return true
}

// HandleDisconnect ends any in-flight compile after the transport went away.
func (s *Scheduler) HandleDisconnect(message string) {
	s.compiling = false
	s.err = message
}

// Status returns the current state.
func (s *Scheduler) Status() Status {
	return Status{
		Revision:        s.revision,
		LatestSubmitted: s.latestSubmitted,
		LatestApplied:   s.latestApplied,
		Compiling:       s.compiling,
		Err:             s.err,
	}
}

// Reset clears the scheduler for a new document. The revision counter keeps
// counting so responses to requests made before the reset are dropped, and
// the next request asks the backend for every block.
func (s *Scheduler) Reset() {
	s.stopTimer()
	s.token++
	s.pending = ""
	s.hasPending = false
	s.floor = s.revision + 1
	s.latestSubmitted = s.revision
	s.latestApplied = 0
	s.full = true
	s.compiling = false
	s.err = ""
}

// Stop cancels the pending timer, if any.
func (s *Scheduler) Stop() {
	s.stopTimer()
}

func (s *Scheduler) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
