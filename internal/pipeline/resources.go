package pipeline

import (
	"fmt"
	"sync"
)

// Resource is a live handle owned by one run.
type Resource interface {
	Name() string
	Release() error
}

// ResourceFunc adapts a cleanup closure into a Resource.
func ResourceFunc(name string, release func() error) Resource {
	return &funcResource{name: name, release: release}
}

type funcResource struct {
	name    string
	release func() error
}

func (r *funcResource) Name() string { return r.name }

func (r *funcResource) Release() error {
	if r.release == nil {
		return nil
	}
	return r.release()
}

// ResourceSet tracks every handle opened during a run so teardown can release
// each exactly once, on success and on failure alike.
type ResourceSet struct {
	mu       sync.Mutex
	items    []Resource
	released map[int]bool
	closed   bool
}

// NewResourceSet returns an empty set.
func NewResourceSet() *ResourceSet {
	return &ResourceSet{released: make(map[int]bool)}
}

// Register adds a resource to the set. Registering after ReleaseAll releases
// the resource immediately so nothing leaks past teardown.
func (s *ResourceSet) Register(r Resource) {
	if r == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = r.Release()
		return
	}
	s.items = append(s.items, r)
	s.mu.Unlock()
}

// Len reports how many resources have been registered.
func (s *ResourceSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Outstanding reports how many registered resources have not been released.
func (s *ResourceSet) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for i := range s.items {
		if !s.released[i] {
			count++
		}
	}
	return count
}

// ReleaseAll releases every registered resource exactly once, in reverse
// registration order. One resource failing does not prevent the rest from
// being released; all failures are collected.
func (s *ResourceSet) ReleaseAll() []error {
	s.mu.Lock()
	s.closed = true
	items := s.items
	released := s.released
	s.mu.Unlock()

	var errs []error
	for i := len(items) - 1; i >= 0; i-- {
		s.mu.Lock()
		done := released[i]
		released[i] = true
		s.mu.Unlock()
		if done {
			continue
		}
		if err := items[i].Release(); err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", items[i].Name(), err))
		}
	}
	return errs
}
