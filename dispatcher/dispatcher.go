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

// Package dispatcher tokenizes a command line and routes it, by
// case-insensitive target/action match, to the first registered handler
// that accepts it.
package dispatcher

import (
	"strings"
	"sync"

	libctx "github.com/cedarwell/pihubd/context"
	liberr "github.com/cedarwell/pihubd/errors"
)

const (
	// DefaultMaxTargetLen is the default maximum length, in bytes, of a
	// target token.
	DefaultMaxTargetLen = 32
	// DefaultMaxActionLen is the default maximum length, in bytes, of an
	// action token.
	DefaultMaxActionLen = 32
	// DefaultMaxArgLen is the default maximum length, in bytes, of one
	// argument token.
	DefaultMaxArgLen = 32
	// DefaultMaxArgs is the default maximum number of arguments accepted
	// per command.
	DefaultMaxArgs = 10
	// DefaultCapacity is the default number of slots in the command
	// table.
	DefaultCapacity = 16
	// DefaultDelimiter separates tokens within a command line.
	DefaultDelimiter = " "
	// MaxDelimiterLen bounds the configured delimiter's length.
	MaxDelimiterLen = 8
)

// Handler runs one matched command. args has exactly argc valid entries;
// ctx carries the originating client and any application-level state the
// caller chose to put there, replacing a global mutable application
// context.
type Handler func(ctx libctx.Config[string], args []string, argc int)

type slot struct {
	valid  bool
	target string
	action string
	fn     Handler
}

// Command describes one entry to Register.
type Command struct {
	Target  string
	Action  string
	Handler Handler
}

// Options configures a Dispatcher at construction time.
type Options struct {
	Delimiter    string
	Capacity     int
	MaxTargetLen int
	MaxActionLen int
	MaxArgLen    int
	MaxArgs      int
}

// DefaultOptions returns the size bounds and delimiter recognized by the
// wire protocol unless overridden.
func DefaultOptions() Options {
	return Options{
		Delimiter:    DefaultDelimiter,
		Capacity:     DefaultCapacity,
		MaxTargetLen: DefaultMaxTargetLen,
		MaxActionLen: DefaultMaxActionLen,
		MaxArgLen:    DefaultMaxArgLen,
		MaxArgs:      DefaultMaxArgs,
	}
}

// MaxBufferLen returns the largest input buffer this configuration will
// accept: target + delimiter + action + (delimiter + arg) * maxArgs.
func (o Options) MaxBufferLen() int {
	return o.MaxTargetLen + len(o.Delimiter) + o.MaxActionLen + (o.MaxArgLen+len(o.Delimiter))*o.MaxArgs
}

// Dispatcher is a fixed-capacity, thread-safe command table.
type Dispatcher struct {
	opt   Options
	mu    sync.Mutex
	slots []slot
}

// New validates opt and returns an initialized Dispatcher.
func New(opt Options) (*Dispatcher, liberr.Error) {
	if opt.Delimiter == "" || len(opt.Delimiter) > MaxDelimiterLen {
		return nil, liberr.InvalidArgument.Error(nil)
	}

	if opt.Capacity <= 0 {
		opt.Capacity = DefaultCapacity
	}

	return &Dispatcher{
		opt:   opt,
		slots: make([]slot, opt.Capacity),
	}, nil
}

// Register populates slot id with cmd. It fails with InvalidArgument if id
// is out of range or cmd is malformed, or IdAlreadyTaken if the slot is
// already populated.
func (d *Dispatcher) Register(id int, cmd Command) liberr.Error {
	if id < 0 || id >= len(d.slots) {
		return liberr.InvalidArgument.Error(nil)
	}

	if cmd.Target == "" || len(cmd.Target) >= d.opt.MaxTargetLen {
		return liberr.InvalidArgument.Error(nil)
	}

	if cmd.Action == "" || len(cmd.Action) >= d.opt.MaxActionLen {
		return liberr.InvalidArgument.Error(nil)
	}

	if cmd.Handler == nil {
		return liberr.InvalidArgument.Error(nil)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.slots[id].valid {
		return liberr.IdAlreadyTaken.Error(nil)
	}

	d.slots[id] = slot{valid: true, target: cmd.Target, action: cmd.Action, fn: cmd.Handler}

	return nil
}

// Deregister marks slot id invalid. An already-invalid slot is a no-op.
func (d *Dispatcher) Deregister(id int) liberr.Error {
	if id < 0 || id >= len(d.slots) {
		return liberr.InvalidArgument.Error(nil)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.slots[id] = slot{}

	return nil
}

func asciiEqualFold(a, b string, maxLen int) bool {
	if len(a) > maxLen || len(b) > maxLen {
		return false
	}

	return strings.EqualFold(a, b)
}

func splitTokens(buf, delim string) []string {
	raw := strings.Split(buf, delim)
	res := make([]string, 0, len(raw))

	for _, t := range raw {
		if t != "" {
			res = append(res, t)
		}
	}

	return res
}

// Execute tokenizes buf and, on a match, invokes the corresponding
// handler synchronously with ctx. It never runs more than one handler.
func (d *Dispatcher) Execute(buf string, ctx libctx.Config[string]) liberr.Error {
	if len(buf) >= d.opt.MaxBufferLen() {
		return liberr.BufTooLong.Error(nil)
	}

	trimmed := strings.TrimSpace(buf)
	if trimmed == "" {
		return liberr.BufEmpty.Error(nil)
	}

	tokens := splitTokens(trimmed, d.opt.Delimiter)
	if len(tokens) < 1 {
		return liberr.BufEmpty.Error(nil)
	}

	target := tokens[0]
	if len(target) >= d.opt.MaxTargetLen {
		return liberr.TokenTooLong.Error(nil)
	}

	if len(tokens) < 2 {
		return liberr.CmdIncomplete.Error(nil)
	}

	action := tokens[1]
	if len(action) >= d.opt.MaxActionLen {
		return liberr.TokenTooLong.Error(nil)
	}

	args := tokens[2:]
	if len(args) > d.opt.MaxArgs {
		return liberr.TooManyArgs.Error(nil)
	}

	for _, a := range args {
		if len(a) > d.opt.MaxArgLen {
			return liberr.TokenTooLong.Error(nil)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.slots {
		s := &d.slots[i]
		if !s.valid {
			continue
		}

		if asciiEqualFold(target, s.target, d.opt.MaxTargetLen) && asciiEqualFold(action, s.action, d.opt.MaxActionLen) {
			s.fn(ctx, args, len(args))
			return nil
		}
	}

	return liberr.CmdNotFound.Error(nil)
}
