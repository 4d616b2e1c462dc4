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
	"bufio"
	"sync/atomic"

	liberr "github.com/cedarwell/pihubd/errors"
	"github.com/cedarwell/pihubd/registry"
)

// acceptLoop owns the listening socket. It accepts connections until the
// listener is closed by Shutdown, at which point Accept returns an error
// and the loop exits — closing the listener is the wake descriptor for
// this goroutine, replacing a separate readiness-multiplexor wakeup.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
				s.fail(err)
				return
			}
		}

		if s.reg.Length() >= s.opt.MaxClients {
			_ = conn.Close()
			continue
		}

		h := &registry.Handle{
			Key:    registry.Key(atomic.AddInt64(&s.nextKey, 1)),
			Conn:   conn,
			Reader: bufio.NewReader(conn),
			Addr:   conn.RemoteAddr().String(),
		}

		if e := s.reg.Append(h); e != nil {
			s.log.Error("registry append failed: %s", liberr.Line(e))
			_ = conn.Close()
			continue
		}

		s.wg.Add(1)
		go s.clientWorker(h)

		s.opt.Callbacks.OnClientConnect(h)
	}
}
