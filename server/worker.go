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
	"github.com/cedarwell/pihubd/registry"
)

// clientWorker owns one accepted connection for its whole life. It blocks
// on h.Reader.Peek, which reports data availability without consuming it,
// so the application reads with Server.Read — through the very same
// *bufio.Reader — at its own pace through on_data. Peeking and reading
// through two different readers would strand the peeked bytes in the
// reader nobody reads from again; see registry.Handle.Reader. The
// connection closing — whether the peer hung up or Disconnect closed it
// on the server's behalf — is this goroutine's only wake signal; the
// Handle's Forced flag is how it tells the two apart afterward.
func (s *Server) clientWorker(h *registry.Handle) {
	defer s.wg.Done()

	for {
		if _, err := h.Reader.Peek(1); err != nil {
			s.teardown(h, err)
			return
		}

		s.opt.Callbacks.OnDataReceived(h)
	}
}

func (s *Server) teardown(h *registry.Handle, cause error) {
	s.reg.Remove(h.Key)
	_ = h.Conn.Close()

	if h.WasForced() {
		return
	}

	s.opt.Callbacks.OnClientDisconnect(h)
}
