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

// Package sensor models an environmental sensor sitting behind a register
// based transport (I2C/SPI in a real deployment), with fixed-point
// register values compensated into floating point physical units.
package sensor

import (
	"sync"

	liberr "github.com/cedarwell/pihubd/errors"
)

// Transport reads and writes a device register, keyed by device address
// and register address. A real implementation wraps an I2C or SPI bus;
// SimTransport below backs a register map with an in-memory buffer.
type Transport interface {
	Read(addr uint8, reg uint8) (uint16, liberr.Error)
	Write(addr uint8, reg uint8, val uint16) liberr.Error
}

// Driver is the environmental sensor's public surface, consumed by
// command handlers.
type Driver interface {
	Init(addr uint8, t Transport) liberr.Error
	CheckID() (bool, liberr.Error)
	GetTemperature() (float64, liberr.Error)
	GetHumidity() (float64, liberr.Error)
	GetPressure() (float64, liberr.Error)
	Deinit() liberr.Error
}

const (
	regChipID      = 0xD0
	regTemperature = 0xFA
	regHumidity    = 0xFD
	regPressure    = 0xF7

	expectedChipID = 0x60
)

// SimDriver is grounded in the original device's register layout but
// reads compensated values straight from its transport, with no raw
// calibration math: each register already holds the physical quantity
// scaled by fixedPointScale.
type SimDriver struct {
	mu   sync.Mutex
	addr uint8
	t    Transport
}

const fixedPointScale = 100.0

func (d *SimDriver) Init(addr uint8, t Transport) liberr.Error {
	if t == nil {
		return liberr.InvalidArgument.Error(nil)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.addr = addr
	d.t = t

	return nil
}

func (d *SimDriver) CheckID() (bool, liberr.Error) {
	d.mu.Lock()
	t, addr := d.t, d.addr
	d.mu.Unlock()

	if t == nil {
		return false, liberr.NotStarted.Error(nil)
	}

	id, err := t.Read(addr, regChipID)
	if err != nil {
		return false, err
	}

	return id == expectedChipID, nil
}

func (d *SimDriver) readScaled(reg uint8) (float64, liberr.Error) {
	d.mu.Lock()
	t, addr := d.t, d.addr
	d.mu.Unlock()

	if t == nil {
		return 0, liberr.NotStarted.Error(nil)
	}

	raw, err := t.Read(addr, reg)
	if err != nil {
		return 0, err
	}

	return float64(raw) / fixedPointScale, nil
}

func (d *SimDriver) GetTemperature() (float64, liberr.Error) { return d.readScaled(regTemperature) }
func (d *SimDriver) GetHumidity() (float64, liberr.Error)    { return d.readScaled(regHumidity) }
func (d *SimDriver) GetPressure() (float64, liberr.Error)    { return d.readScaled(regPressure) }

func (d *SimDriver) Deinit() liberr.Error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.t = nil

	return nil
}

// SimTransport is an in-memory register map, standing in for the real
// I2C/SPI bus.
type SimTransport struct {
	mu   sync.Mutex
	regs map[uint8]uint16
}

// NewSimTransport seeds the chip-ID register so CheckID succeeds out of
// the box, plus whatever other register values seed provides.
func NewSimTransport(seed map[uint8]uint16) *SimTransport {
	regs := make(map[uint8]uint16, len(seed)+1)
	regs[regChipID] = expectedChipID

	for k, v := range seed {
		regs[k] = v
	}

	return &SimTransport{regs: regs}
}

func (s *SimTransport) Read(_ uint8, reg uint8) (uint16, liberr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.regs[reg]
	if !ok {
		return 0, liberr.InvalidArgument.Error(nil)
	}

	return v, nil
}

func (s *SimTransport) Write(_ uint8, reg uint8, val uint16) liberr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.regs[reg] = val

	return nil
}
