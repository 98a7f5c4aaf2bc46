package multierror

import (
	"fmt"
	"strings"
	"sync"
)

// Error collects errors from independent steps, keyed by the step that
// produced them. Useful for shutdown sequences where every step must run
// even if an earlier one failed.
type Error[T comparable] struct {
	mu     sync.Mutex
	keys   []T
	errors map[T]error
}

// New creates an empty Error.
func New[T comparable]() *Error[T] {
	return &Error[T]{
		errors: make(map[T]error),
	}
}

// Add records an error under the given key.
func (m *Error[T]) Add(key T, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.errors[key]; !ok {
		m.keys = append(m.keys, key)
	}

	m.errors[key] = err
}

// Error returns all collected errors in insertion order.
func (m *Error[T]) Error() string {
	parts := make([]string, 0, len(m.keys))
	for _, k := range m.keys {
		parts = append(parts, fmt.Sprintf("%v: %s", k, m.errors[k]))
	}

	return strings.Join(parts, "; ")
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (m *Error[T]) Unwrap() []error {
	errs := make([]error, 0, len(m.keys))
	for _, k := range m.keys {
		errs = append(errs, m.errors[k])
	}

	return errs
}

// Combined returns the Error itself if anything was collected, nil
// otherwise.
func (m *Error[T]) Combined() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.errors) == 0 {
		return nil
	}

	return m
}
