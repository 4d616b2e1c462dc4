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

package server

import (
	"net"
	"strings"
	"sync"

	libatm "github.com/cedarwell/pihubd/atomic"
	liberr "github.com/cedarwell/pihubd/errors"
	errpool "github.com/cedarwell/pihubd/errors/pool"
	liblog "github.com/cedarwell/pihubd/logger"
	"github.com/cedarwell/pihubd/registry"
)

// State is the lifecycle state of a Server Instance.
type State uint8

const (
	StateInitialized State = iota
	StateRunning
	StateQuiescing
)

// Server is the public façade: lifecycle plus per-session operations. The
// zero value is not usable; construct with Init.
type Server struct {
	// mu is the Server lock: it protects lifecycle transitions and
	// registry destruction. Lock order when taken together with other
	// locks: Server -> Registry -> per-client I/O -> Dispatcher.
	mu sync.Mutex

	opt   Config
	state libatm.Value[State]
	log   liblog.Logger

	reg *registry.Registry

	ln       net.Listener
	laddr    string
	shutdown chan struct{}
	wg       sync.WaitGroup
	nextKey  int64
}

// Init validates cfg and prepares a Server Instance that owns no listening
// socket yet; Run performs the actual bind+listen. Resolving the address
// here (rather than inside Run) surfaces a malformed port immediately,
// the same early-validation guarantee the original spec's init gives for
// a socket created-but-not-listening.
func Init(cfg Config) (*Server, liberr.Error) {
	cfg = cfg.withDefaults()

	if cfg.Port == "" || !cfg.Callbacks.valid() {
		return nil, liberr.InvalidArgument.Error(nil)
	}

	if _, err := net.ResolveTCPAddr("tcp", addrFromPort(cfg.Port)); err != nil {
		return nil, liberr.NetworkFailure.Error(err)
	}

	s := &Server{
		opt:   cfg,
		state: libatm.NewValue[State](),
		log:   liblog.New(),
		reg:   registry.New(),
	}

	s.state.Store(StateInitialized)

	return s, nil
}

func addrFromPort(port string) string {
	if strings.Contains(port, ":") {
		return port
	}

	return ":" + port
}

// Run begins listening and spawns the Listener task. It is not idempotent.
func (s *Server) Run() liberr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Load() != StateInitialized {
		return liberr.AlreadyRunning.Error(nil)
	}

	ln, err := net.Listen("tcp", addrFromPort(s.opt.Port))
	if err != nil {
		return liberr.NetworkFailure.Error(err)
	}

	s.ln = ln
	s.laddr = ln.Addr().String()
	s.shutdown = make(chan struct{})
	s.state.Store(StateRunning)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Read takes client's I/O lock and receives up to len(buf) bytes through
// client.Reader, the same buffered reader clientWorker peeks — reading
// through any other view of the connection would miss bytes the peek
// already pulled out of the kernel socket. A would-block style short read
// (zero bytes, nil error) is reported as length zero, not an error;
// end-of-stream or a fatal socket error is reported as ClientDisconnected.
// Read never implicitly closes the client.
func (s *Server) Read(client *registry.Handle, buf []byte) (int, liberr.Error) {
	client.IO.Lock()
	defer client.IO.Unlock()

	n, err := client.Reader.Read(buf)
	if err != nil {
		return n, liberr.ClientDisconnected.Error(err)
	}

	return n, nil
}

// Write takes client's I/O lock and sends every byte, looping on partial
// sends until complete or a send fails.
func (s *Server) Write(client *registry.Handle, p []byte) liberr.Error {
	client.IO.Lock()
	defer client.IO.Unlock()

	for len(p) > 0 {
		n, err := client.Conn.Write(p)
		if err != nil {
			return liberr.NetworkFailure.Error(err)
		}
		p = p[n:]
	}

	return nil
}

// Broadcast writes p to every registered client concurrently. Unlike the
// original source, a write failure on one client does not abort delivery
// to the rest (see SPEC_FULL.md's resolved open question); failures from
// every client are collected into a pool before being returned, since
// concurrent writers cannot safely share a plain slice.
func (s *Server) Broadcast(p []byte) []liberr.Error {
	snapshot := s.reg.Snapshot()
	failed := errpool.New()

	var wg sync.WaitGroup
	for _, entry := range snapshot {
		h, ok := s.reg.Get(entry.Key)
		if !ok {
			continue
		}

		wg.Add(1)
		go func(h *registry.Handle) {
			defer wg.Done()
			if e := s.Write(h, p); e != nil {
				failed.Add(e)
			}
		}(h)
	}
	wg.Wait()

	if failed.Len() == 0 {
		return nil
	}

	out := make([]liberr.Error, 0, failed.Len())
	for _, raw := range failed.Slice() {
		if e, ok := raw.(liberr.Error); ok {
			out = append(out, e)
		}
	}
	return out
}

// Disconnect signals client's wake descriptor; the worker performs the
// actual teardown asynchronously. suppressCallback skips the
// on_client_disconnect hook, used during shutdown to avoid broadcasting
// into a registry that is being torn down.
func (s *Server) Disconnect(client *registry.Handle, suppressCallback bool) {
	if suppressCallback {
		client.SetForced()
	}

	_ = client.Conn.Close()
}

// Shutdown disconnects every client with callback suppression, signals the
// listener to stop accepting, and waits for the listener and every worker
// to actually exit before returning — the join barrier the original
// source's own TODO called for.
func (s *Server) Shutdown() {
	s.mu.Lock()

	if s.state.Load() != StateRunning {
		s.mu.Unlock()
		return
	}

	s.state.Store(StateQuiescing)

	s.reg.Traverse(func(h *registry.Handle) bool {
		s.Disconnect(h, true)
		return true
	})

	close(s.shutdown)
	_ = s.ln.Close()

	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.state.Store(StateInitialized)
	s.mu.Unlock()
}

// Deinit destroys the Client Registry and releases the Server lock state.
// It may only be called on a quiesced (Initialized-after-run) instance.
func (s *Server) Deinit() liberr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Load() == StateRunning {
		return liberr.AlreadyRunning.Error(nil)
	}

	s.reg.Clear()

	return nil
}

// GetClientAddress resolves client's peer address as a host string without
// the port (a dotted IPv4 address for an IPv4 peer).
func (s *Server) GetClientAddress(client *registry.Handle) (string, liberr.Error) {
	addr := client.Conn.RemoteAddr()
	if addr == nil {
		return "", liberr.NetworkFailure.Error(nil)
	}

	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return "", liberr.NetworkFailure.Error(err)
	}

	return host, nil
}

// EnumerateClients returns a detached snapshot of every registered
// client, safe to walk without holding any lock (see SPEC_FULL.md's
// resolved open question on the original's unsafe head-pointer walk).
func (s *Server) EnumerateClients() []registry.Entry {
	return s.reg.Snapshot()
}

// Addr returns the address the listener is bound to, once Run has
// succeeded.
func (s *Server) Addr() string {
	return s.laddr
}

func (s *Server) fail(err error) {
	s.log.Error("server failure: %s", err)
	s.opt.Callbacks.OnServerFailure(err)
}
