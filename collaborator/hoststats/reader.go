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

// Package hoststats answers the "host stats" command by reading live CPU,
// memory and uptime figures from the operating system.
package hoststats

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	gopsnet "github.com/shirou/gopsutil/v3/net"

	liberr "github.com/cedarwell/pihubd/errors"
)

// InterfaceCounters is the byte/packet tally for one network interface.
type InterfaceCounters struct {
	Name        string
	BytesSent   uint64
	BytesRecv   uint64
	PacketsSent uint64
	PacketsRecv uint64
}

// Snapshot is one point-in-time reading of host resource usage.
type Snapshot struct {
	CPUPercent float64
	MemTotal   uint64
	MemUsed    uint64
	MemPercent float64
	UptimeSecs uint64
	Interfaces []InterfaceCounters
}

// Reader is implemented by anything that can produce a Snapshot, so the
// command handlers can be tested against a fake without touching the real
// operating system.
type Reader interface {
	Read() (Snapshot, liberr.Error)
}

// GopsutilReader reads Snapshots from the local host via gopsutil.
type GopsutilReader struct {
	// SampleWindow is how long cpu.Percent blocks measuring utilization.
	// A zero value takes an instantaneous, less stable reading.
	SampleWindow time.Duration
}

// NewGopsutilReader returns a Reader with a sensible sampling window.
func NewGopsutilReader() *GopsutilReader {
	return &GopsutilReader{SampleWindow: 200 * time.Millisecond}
}

func (r *GopsutilReader) Read() (Snapshot, liberr.Error) {
	var snap Snapshot

	pct, err := cpu.Percent(r.SampleWindow, false)
	if err != nil {
		return snap, liberr.NetworkFailure.Error(err)
	}
	if len(pct) > 0 {
		snap.CPUPercent = pct[0]
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return snap, liberr.NetworkFailure.Error(err)
	}
	snap.MemTotal = vm.Total
	snap.MemUsed = vm.Used
	snap.MemPercent = vm.UsedPercent

	info, err := host.Info()
	if err != nil {
		return snap, liberr.NetworkFailure.Error(err)
	}
	snap.UptimeSecs = info.Uptime

	counters, err := gopsnet.IOCounters(true)
	if err != nil {
		return snap, liberr.NetworkFailure.Error(err)
	}
	for _, c := range counters {
		snap.Interfaces = append(snap.Interfaces, InterfaceCounters{
			Name:        c.Name,
			BytesSent:   c.BytesSent,
			BytesRecv:   c.BytesRecv,
			PacketsSent: c.PacketsSent,
			PacketsRecv: c.PacketsRecv,
		})
	}

	return snap, nil
}
