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

// Package gpio controls digital output/input lines behind a small
// interface, so command handlers never depend on the underlying
// hardware access method.
package gpio

import (
	"sync"

	liberr "github.com/cedarwell/pihubd/errors"
)

// State is the logical level of a GPIO line.
type State bool

const (
	Low  State = false
	High State = true
)

// Collaborator is consumed by command handlers only; it never touches the
// dispatcher or the registry.
type Collaborator interface {
	Set(line string, state State) liberr.Error
	Get(line string) (State, liberr.Error)
}

// SimCollaborator is an in-memory GPIO backed by a fixed set of known
// lines, standing in for a real sysfs/chardev driver.
type SimCollaborator struct {
	mu    sync.Mutex
	lines map[string]State
}

// NewSimCollaborator seeds every line in names at Low.
func NewSimCollaborator(names []string) *SimCollaborator {
	lines := make(map[string]State, len(names))
	for _, n := range names {
		lines[n] = Low
	}

	return &SimCollaborator{lines: lines}
}

func (s *SimCollaborator) Set(line string, state State) liberr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lines[line]; !ok {
		return liberr.InvalidArgument.Error(nil)
	}

	s.lines[line] = state

	return nil
}

func (s *SimCollaborator) Get(line string) (State, liberr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.lines[line]
	if !ok {
		return Low, liberr.InvalidArgument.Error(nil)
	}

	return st, nil
}
