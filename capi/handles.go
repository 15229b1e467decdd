//go:build cgo

// Package main is the cgo-backed C ABI surface of spec.md §6, built as
// -buildmode=c-shared. It is a thin translation layer: every exported
// function resolves an opaque handle, calls into the hailopipe package,
// and translates the Go result into C-friendly primitives.
//
// It is package main (not an importable library package) because
// -buildmode=c-shared requires one; the hailopipe module itself is still
// consumed as a normal Go import from here.
package main

import (
	"sync"

	"github.com/modelingevolution/hailopipe"
)

// handle is the Go-side registration for one opaque C handle: a
// pipeline, a result, or a segment (a view into a result it keeps
// alive). Per spec.md §9 Open Question 1 / SPEC_FULL.md §6, "last error"
// lives here, scoped to the handle, rather than on a process-wide global
// or a true OS thread-local.
type handle struct {
	mu  sync.Mutex
	pipeline *hailopipe.Pipeline
	result   *hailopipe.SegmentationResult

	// segment and resultOwner are set for handles returned by result_get:
	// resultOwner keeps the parent SegmentationResult (and therefore
	// segment, which points into its Segments slice) alive until the
	// segment handle itself is disposed alongside the result.
	segment     *hailopipe.Segment
	resultOwner *hailopipe.SegmentationResult

	lastError string
}

var (
	registryMu sync.Mutex
	registry   = make(map[uintptr]*handle)
	nextID     uintptr = 1
)

func register(h *handle) uintptr {
	registryMu.Lock()
	defer registryMu.Unlock()
	id := nextID
	nextID++
	registry[id] = h
	return id
}

func lookup(id uintptr) *handle {
	registryMu.Lock()
	defer registryMu.Unlock()
	return registry[id]
}

func unregister(id uintptr) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, id)
}

func (h *handle) setError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err == nil {
		h.lastError = ""
		return
	}
	h.lastError = err.Error()
}

func (h *handle) getError() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastError
}
