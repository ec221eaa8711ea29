package framework

import (
	"context"
	"fmt"
	"sync"
)

// ResourceSpec describes one prerequisite of a test case and knows how to
// acquire it.
type ResourceSpec interface {
	// Kind identifies the resource category ("container", "process", ...).
	Kind() string
	// Describe returns a human-readable identifier for logs and errors.
	Describe() string
	// Acquire provisions the resource. Failures surface to the case as an
	// AcquisitionError; the returned handle must be fully usable.
	Acquire(ctx context.Context, rc *RunContext) (ResourceHandle, error)
}

// ResourceHandle is a live acquired resource. Release must be safe to call
// more than once; implementations guard with sync.Once or equivalent. The
// orchestrator additionally releases each handle at most once itself.
type ResourceHandle interface {
	Kind() string
	Release() error
}

// Snapshotter is an optional capability of a ResourceHandle: a handle that
// can describe its current state as diagnostic artifacts (container log
// diffs, process output, recorded traffic). The capture sink collects from
// every handle that has it.
type Snapshotter interface {
	Snapshot() ([]Artifact, error)
}

// Unwrap descends through wrapping handles (such as shared-resource
// references) to the innermost concrete handle.
func Unwrap(h ResourceHandle) ResourceHandle {
	for {
		u, ok := h.(interface{ Underlying() ResourceHandle })
		if !ok {
			return h
		}
		inner := u.Underlying()
		if inner == nil || inner == h {
			return h
		}
		h = inner
	}
}

// releaseList tracks a case's acquired handles and releases them in reverse
// acquisition order. Each handle is released at most once; failures are
// reported through the callback and do not stop the remaining releases.
type releaseList struct {
	lock     sync.Mutex
	handles  []ResourceHandle
	released []bool
}

func newReleaseList(handles []ResourceHandle) *releaseList {
	return &releaseList{handles: handles, released: make([]bool, len(handles))}
}

func (l *releaseList) releaseAll(onError func(h ResourceHandle, err error)) {
	l.lock.Lock()
	defer l.lock.Unlock()
	for i := len(l.handles) - 1; i >= 0; i-- {
		if l.released[i] {
			continue
		}
		l.released[i] = true
		if err := safeRelease(l.handles[i]); err != nil {
			onError(l.handles[i], err)
		}
	}
}

func safeRelease(h ResourceHandle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during release: %+v", r)
		}
	}()
	return h.Release()
}

// SharedResource makes one underlying resource available to multiple cases.
// Cases share by declaring the same *SharedResource value in their resource
// lists. The first acquisition creates the real handle; later ones reuse it;
// the handle is released when the last referencing case finishes. The mutex
// spans the underlying acquisition, so concurrent first references cannot
// double-acquire.
type SharedResource struct {
	spec   ResourceSpec
	lock   sync.Mutex
	handle ResourceHandle
	refs   int
}

// NewSharedResource wraps a spec for session-scoped sharing.
func NewSharedResource(spec ResourceSpec) *SharedResource {
	return &SharedResource{spec: spec}
}

func (s *SharedResource) Kind() string { return s.spec.Kind() }

func (s *SharedResource) Describe() string { return s.spec.Describe() + " (shared)" }

// Acquire implements ResourceSpec.
func (s *SharedResource) Acquire(ctx context.Context, rc *RunContext) (ResourceHandle, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.handle == nil {
		h, err := s.spec.Acquire(ctx, rc)
		if err != nil {
			return nil, err
		}
		s.handle = h
	}
	s.refs++
	return &sharedRef{owner: s}, nil
}

// Handle returns the live underlying handle, or nil when not acquired.
func (s *SharedResource) Handle() ResourceHandle {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.handle
}

// ReleaseNow force-releases the underlying handle regardless of the
// reference count. Escape hatch for teardown outside the orchestrator.
func (s *SharedResource) ReleaseNow() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.handle == nil {
		return nil
	}
	h := s.handle
	s.handle = nil
	s.refs = 0
	return h.Release()
}

func (s *SharedResource) release() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.refs == 0 || s.handle == nil {
		return nil
	}
	s.refs--
	if s.refs > 0 {
		return nil
	}
	h := s.handle
	s.handle = nil
	return h.Release()
}

// sharedRef is one case's view of a SharedResource. Releasing it decrements
// the reference count; only the last release reaches the real handle.
type sharedRef struct {
	owner *SharedResource
	once  sync.Once
}

func (r *sharedRef) Kind() string { return r.owner.Kind() }

func (r *sharedRef) Underlying() ResourceHandle { return r.owner.Handle() }

func (r *sharedRef) Release() error {
	var err error
	r.once.Do(func() { err = r.owner.release() })
	return err
}

func (r *sharedRef) Snapshot() ([]Artifact, error) {
	if s, ok := r.owner.Handle().(Snapshotter); ok {
		return s.Snapshot()
	}
	return nil, nil
}
