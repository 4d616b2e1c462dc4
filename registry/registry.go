/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package registry holds the thread-safe, ordered set of connected clients.
// It owns no network resources itself: it is storage and traversal only,
// keyed by a per-connection integer the server assigns on accept.
package registry

import (
	"bufio"
	"container/list"
	"net"
	"sync"

	liberr "github.com/cedarwell/pihubd/errors"
)

// Key identifies a Handle. The server assigns it from an increasing
// counter when it accepts the connection, so no two live clients share one.
type Key int

// Handle is the record of one connected peer: its connection, the
// buffered reader the Worker peeks and the Server reads through (the two
// must share one reader, or bytes pulled into the buffer by Peek would
// never reach Read), the lock serializing reads/writes, and the flag a
// Worker consults to tell a forced disconnect from a client-initiated one.
type Handle struct {
	Key    Key
	Conn   net.Conn
	Reader *bufio.Reader
	Addr   string
	IO     sync.Mutex
	Forced bool

	mu sync.Mutex
}

// SetForced marks the handle as closed by the server rather than the peer.
func (h *Handle) SetForced() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Forced = true
}

// WasForced reports whether SetForced was called before the connection
// dropped.
func (h *Handle) WasForced() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Forced
}

// Entry is a point-in-time, detached view of a registered client, safe to
// hold and read after the registry lock has been released.
type Entry struct {
	Key  Key
	Addr string
}

// Registry is the ordered, thread-safe collection of Client Handles.
type Registry struct {
	mu   sync.Mutex
	l    *list.List
	byID map[Key]*list.Element
}

func New() *Registry {
	return &Registry{
		l:    list.New(),
		byID: make(map[Key]*list.Element),
	}
}

// Append inserts handle at the tail. It fails with AllocationFailure only
// if the key is already present, since the list itself has no fixed
// capacity to exhaust.
func (r *Registry) Append(h *Handle) liberr.Error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[h.Key]; ok {
		return liberr.AllocationFailure.Error(nil)
	}

	e := r.l.PushBack(h)
	r.byID[h.Key] = e

	return nil
}

// Remove deletes the entry for key, if any. Absent key is a no-op.
func (r *Registry) Remove(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[key]
	if !ok {
		return
	}

	r.l.Remove(e)
	delete(r.byID, key)
}

// HeadSnapshot returns the handle at the head of the registry at call time,
// or nil if empty. The lock is released before returning; callers accept
// that the handle may be concurrently removed (see Snapshot for the safer
// alternative used by enumerate_clients-style callers).
func (r *Registry) HeadSnapshot() *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.l.Front()
	if e == nil {
		return nil
	}

	return e.Value.(*Handle)
}

// Traverse applies fn to every stored handle, in insertion order, under the
// registry lock. fn returning false stops the traversal early.
func (r *Registry) Traverse(fn func(h *Handle) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for e := r.l.Front(); e != nil; e = e.Next() {
		if !fn(e.Value.(*Handle)) {
			return
		}
	}
}

// Length returns the current number of registered clients.
func (r *Registry) Length() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.l.Len()
}

// Snapshot returns a copied, detached view of every registered client in
// insertion order. Unlike HeadSnapshot, the returned entries never alias
// a Handle that another goroutine might be tearing down concurrently; this
// is the safe form of the original's enumerate_clients.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]Entry, 0, r.l.Len())

	for e := r.l.Front(); e != nil; e = e.Next() {
		h := e.Value.(*Handle)
		res = append(res, Entry{Key: h.Key, Addr: h.Addr})
	}

	return res
}

// Clear empties the registry in a single lock acquisition. Unlike
// Traverse+Remove, it is safe to call on a non-empty registry: Remove
// takes the same mutex Traverse already holds for the whole walk, so
// calling it from inside a Traverse callback deadlocks.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.l.Init()
	r.byID = make(map[Key]*list.Element)
}

// Get returns the handle for key, if present.
func (r *Registry) Get(key Key) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[key]
	if !ok {
		return nil, false
	}

	return e.Value.(*Handle), true
}
