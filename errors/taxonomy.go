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

package errors

// Cross-package error kinds shared by every component of the hub. Each
// package-specific code below is offset by that package's Min* base so two
// packages can never collide; see modules.go.

const (
	InvalidArgument CodeError = MinPkgConfig + iota + 1
	AlreadyRunning
	NotStarted
	NetworkFailure
	AllocationFailure
	SynchronizationFailure
	ClientDisconnected
	MultiplexorFailure
)

const (
	CmdNotFound CodeError = MinPkgDispatcher + iota + 1
	CmdIncomplete
	BufEmpty
	BufTooLong
	TokenTooLong
	TooManyArgs
	IdAlreadyTaken
)

func init() {
	RegisterIdFctMessage(InvalidArgument, func(code CodeError) string {
		switch code {
		case InvalidArgument:
			return "invalid argument"
		case AlreadyRunning:
			return "already running"
		case NotStarted:
			return "not started"
		case NetworkFailure:
			return "network failure"
		case AllocationFailure:
			return "allocation failure"
		case SynchronizationFailure:
			return "synchronization failure"
		case ClientDisconnected:
			return "client disconnected"
		case MultiplexorFailure:
			return "multiplexor failure"
		}
		return ""
	})

	RegisterIdFctMessage(CmdNotFound, func(code CodeError) string {
		switch code {
		case CmdNotFound:
			return "command not found"
		case CmdIncomplete:
			return "command incomplete"
		case BufEmpty:
			return "buffer empty"
		case BufTooLong:
			return "buffer too long"
		case TokenTooLong:
			return "token too long"
		case TooManyArgs:
			return "too many arguments"
		case IdAlreadyTaken:
			return "id already taken"
		}
		return ""
	})
}
