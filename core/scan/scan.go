package scan

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/organquest/backend/core"
)

// Acquisition failure sentinels. Device implementations wrap one of these so
// failures can be classified for the caller.
var (
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrDeviceNotFound   = errors.New("no camera device found")

	// ErrStopped is returned by Start when the session was stopped while the
	// device grant was still pending.
	ErrStopped = errors.New("scan session stopped")
)

type ErrorClass string

const (
	ClassPermissionDenied ErrorClass = "permission-denied"
	ClassDeviceNotFound   ErrorClass = "device-not-found"
	ClassUnknown          ErrorClass = "unknown"
)

// Error is a classified acquisition failure.
type Error struct {
	Class ErrorClass
	Err   error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

func classify(err error) ErrorClass {
	switch errors.Cause(err) {
	case ErrPermissionDenied:
		return ClassPermissionDenied
	case ErrDeviceNotFound:
		return ClassDeviceNotFound
	default:
		return ClassUnknown
	}
}

type State string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateActive     State = "active"
	StateStopped    State = "stopped"
)

type (
	// Track is a single media track of an acquired stream. Stopping an already
	// stopped track is the implementation's concern; the session guarantees it
	// calls Stop at most once per track.
	Track interface {
		Stop()
	}

	Stream interface {
		Tracks() []Track
	}

	// Device grants camera streams. Acquire blocks until the grant resolves,
	// the user denies it, or ctx is done.
	Device interface {
		Acquire(ctx context.Context) (Stream, error)
	}

	// ExploreNotifier records that the scanned organ was viewed. Notification
	// is fire-and-forget: the session never fails because of it.
	ExploreNotifier interface {
		NotifyExplored(ctx context.Context, organName string) error
	}
)

// Session owns at most one camera stream at a time and serializes its
// lifecycle. The stream handle lives only on the session; there is no shared
// package-level stream to fall back on.
type Session struct {
	device   Device
	notifier ExploreNotifier
	logger   core.Logger

	organName string

	mu       sync.Mutex
	state    State
	stream   Stream
	gen      int  // bumped on every Start; detects superseded acquisitions
	stopping bool // cleanup in progress
}

func NewSession(device Device, notifier ExploreNotifier, logger core.Logger, organName string) *Session {
	return &Session{
		device:    device,
		notifier:  notifier,
		logger:    logger,
		organName: organName,
		state:     StateIdle,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start acquires the camera. Any stream still held from a previous run is
// fully released first. Acquisition failures are classified and terminal: the
// session ends up Stopped and a new Start is required to retry.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	held := s.stream
	s.stream = nil
	s.state = StateRequesting
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	stopTracks(held)

	stream, err := s.device.Acquire(ctx)

	s.mu.Lock()
	if s.gen != gen || s.state == StateStopped {
		// stopped (or restarted) while the grant was pending; the late stream
		// must not leak
		s.mu.Unlock()
		stopTracks(stream)
		return ErrStopped
	}
	if err != nil {
		s.state = StateStopped
		s.mu.Unlock()
		return &Error{Class: classify(err), Err: err}
	}
	s.stream = stream
	s.state = StateActive
	s.mu.Unlock()

	go s.notifyExplored()
	return nil
}

// Stop releases the held stream. It is safe to call from several goroutines
// at once (back button, navigation, unmount); each track is stopped exactly
// once. Stopping while a grant is pending marks the session stopped and the
// stream is released the moment it arrives.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return
	}
	s.stopping = true
	held := s.stream
	s.stream = nil
	s.state = StateStopped
	s.mu.Unlock()

	stopTracks(held)

	s.mu.Lock()
	s.stopping = false
	s.mu.Unlock()
}

func (s *Session) notifyExplored() {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyExplored(context.Background(), s.organName); err != nil {
		s.logger.Error("scan: explore notification failed", err, "organ", s.organName)
	}
}

func stopTracks(stream Stream) {
	if stream == nil {
		return
	}
	for _, track := range stream.Tracks() {
		track.Stop()
	}
}
