// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package history tracks the ordered list of graph versions and the
// user's recent navigation trail.
package history

// RingBuffer is a fixed-size circular buffer.
//
// # Description
//
// Provides O(1) push and bounded memory usage. When full, the oldest
// item is overwritten. Used for the recent-versions trail and the
// observability event buffer.
//
// # Thread Safety
//
// NOT safe for concurrent use; caller must synchronize.
type RingBuffer[T any] struct {
	data  []T
	head  int // next write position
	tail  int // first element position
	count int
	cap   int
	full  bool
}

// NewRingBuffer creates a new ring buffer with the given capacity.
// Non-positive capacities fall back to a default of 100.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &RingBuffer[T]{
		data: make([]T, capacity),
		cap:  capacity,
	}
}

// Push adds an item, overwriting the oldest when full.
func (r *RingBuffer[T]) Push(item T) {
	r.data[r.head] = item
	r.head = (r.head + 1) % r.cap

	if r.full {
		r.tail = (r.tail + 1) % r.cap
	} else {
		r.count++
		if r.count == r.cap {
			r.full = true
		}
	}
}

// Pop removes and returns the oldest item. The bool is false when the
// buffer is empty.
func (r *RingBuffer[T]) Pop() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}

	item := r.data[r.tail]
	r.data[r.tail] = zero
	r.tail = (r.tail + 1) % r.cap
	r.count--
	r.full = false
	return item, true
}

// Items returns the buffered items oldest-first as a fresh slice.
func (r *RingBuffer[T]) Items() []T {
	out := make([]T, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.data[(r.tail+i)%r.cap])
	}
	return out
}

// Len returns the current number of buffered items.
func (r *RingBuffer[T]) Len() int {
	return r.count
}

// Cap returns the buffer capacity.
func (r *RingBuffer[T]) Cap() int {
	return r.cap
}
