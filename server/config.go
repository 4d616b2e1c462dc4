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

// Package server implements the concurrent TCP connection server: the
// Listener, the Client Worker and the public Server Façade.
package server

import (
	"github.com/cedarwell/pihubd/registry"
)

const (
	// DefaultMaxPending is the default listen backlog.
	DefaultMaxPending = 16
	// DefaultMaxClients is the default hard cap on concurrent clients.
	DefaultMaxClients = 32
)

// Callbacks are the four mandatory application hooks. None may be nil.
type Callbacks struct {
	OnClientConnect    func(client *registry.Handle)
	OnDataReceived     func(client *registry.Handle)
	OnClientDisconnect func(client *registry.Handle)
	OnServerFailure    func(err error)
}

func (c Callbacks) valid() bool {
	return c.OnClientConnect != nil &&
		c.OnDataReceived != nil &&
		c.OnClientDisconnect != nil &&
		c.OnServerFailure != nil
}

// Config is the immutable server configuration supplied to Init.
type Config struct {
	Port       string
	MaxClients int
	MaxPending int
	Callbacks  Callbacks
}

func (c Config) withDefaults() Config {
	if c.MaxClients <= 0 {
		c.MaxClients = DefaultMaxClients
	}

	if c.MaxPending <= 0 {
		c.MaxPending = DefaultMaxPending
	}

	return c
}
