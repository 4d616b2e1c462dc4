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

package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cedarwell/pihubd/collaborator/gpio"
	"github.com/cedarwell/pihubd/collaborator/hoststats"
	"github.com/cedarwell/pihubd/collaborator/sensor"
	"github.com/cedarwell/pihubd/config"
	libctx "github.com/cedarwell/pihubd/context"
	"github.com/cedarwell/pihubd/dispatcher"
	liberr "github.com/cedarwell/pihubd/errors"
	liblog "github.com/cedarwell/pihubd/logger"
	"github.com/cedarwell/pihubd/registry"
	"github.com/cedarwell/pihubd/server"
)

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "start the command server and block until shutdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHub(configPath)
		},
	}
}

// hub wires the registry, dispatcher, server and collaborators into one
// running process; it owns every per-client read buffer.
type hub struct {
	log  liblog.Logger
	srv  *server.Server
	disp *dispatcher.Dispatcher

	bufMu sync.Mutex
	bufs  map[registry.Key]*strings.Builder
}

func runHub(path string) error {
	cfg, e := config.Load(path)
	if e != nil {
		return fmt.Errorf("loading configuration: %w", e)
	}

	if e := config.Validate(cfg); e != nil {
		return fmt.Errorf("invalid configuration: %w", e)
	}

	log := liblog.New()
	log.SetLevel(liblog.ParseLevel(cfg.Logging.Level))

	h := &hub{
		log:  log,
		bufs: make(map[registry.Key]*strings.Builder),
	}

	disp, e := dispatcher.New(dispatcher.Options{
		Delimiter:    cfg.Dispatcher.Delimiter,
		Capacity:     cfg.Dispatcher.Capacity,
		MaxTargetLen: cfg.Dispatcher.MaxTargetLen,
		MaxActionLen: cfg.Dispatcher.MaxActionLen,
		MaxArgLen:    cfg.Dispatcher.MaxArgLen,
		MaxArgs:      cfg.Dispatcher.MaxArgs,
	})
	if e != nil {
		return fmt.Errorf("building dispatcher: %w", e)
	}
	h.disp = disp

	gp := gpio.NewSimCollaborator(cfg.Collaborators.GPIOLines)
	hs := hoststats.NewGopsutilReader()
	sensors := newSimSensors(cfg.Collaborators.SensorNames)

	if e := registerCommands(disp, gp, hs, sensors); e != nil {
		return fmt.Errorf("registering commands: %w", e)
	}

	srv, e := server.Init(server.Config{
		Port:       cfg.Server.Port,
		MaxClients: cfg.Server.MaxClients,
		MaxPending: cfg.Server.MaxPending,
		Callbacks: server.Callbacks{
			OnClientConnect:    h.onConnect,
			OnDataReceived:     h.onData,
			OnClientDisconnect: h.onDisconnect,
			OnServerFailure:    h.onFailure,
		},
	})
	if e != nil {
		return fmt.Errorf("initializing server: %w", e)
	}
	h.srv = srv

	if e := srv.Run(); e != nil {
		return fmt.Errorf("starting server: %w", e)
	}

	log.Info("pihubd listening on %s", srv.Addr())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	srv.Shutdown()

	if e := srv.Deinit(); e != nil {
		return fmt.Errorf("tearing down server: %w", e)
	}

	return nil
}

func newSimSensors(names []string) map[string]sensor.Driver {
	out := make(map[string]sensor.Driver, len(names))

	for i, name := range names {
		tr := sensor.NewSimTransport(map[uint8]uint16{
			0xFA: 2200,
			0xFD: 4000,
			0xF7: 101000,
		})

		d := &sensor.SimDriver{}
		_ = d.Init(uint8(0x76+i), tr)
		out[name] = d
	}

	return out
}

func (h *hub) onConnect(client *registry.Handle) {
	h.bufMu.Lock()
	h.bufs[client.Key] = &strings.Builder{}
	h.bufMu.Unlock()

	h.log.Info("client connected: %s", client.Addr)
}

func (h *hub) onDisconnect(client *registry.Handle) {
	h.bufMu.Lock()
	delete(h.bufs, client.Key)
	h.bufMu.Unlock()

	h.log.Info("client disconnected: %s", client.Addr)
}

func (h *hub) onFailure(err error) {
	h.log.Error("server failure: %s", err)
}

// onData reads whatever is currently available, appends it to the
// client's line buffer, and executes every complete "\n"-terminated
// command it finds. A failed command writes back one error line,
// matching the application layer's error-reporting convention.
func (h *hub) onData(client *registry.Handle) {
	buf := make([]byte, 512)

	n, rerr := h.srv.Read(client, buf)
	if rerr != nil || n == 0 {
		return
	}

	h.bufMu.Lock()
	sb, ok := h.bufs[client.Key]
	if !ok {
		sb = &strings.Builder{}
		h.bufs[client.Key] = sb
	}
	sb.Write(buf[:n])
	pending := sb.String()
	sb.Reset()
	h.bufMu.Unlock()

	lines := strings.Split(pending, "\n")
	for i, line := range lines {
		if i == len(lines)-1 {
			if line != "" {
				h.bufMu.Lock()
				if sb, ok := h.bufs[client.Key]; ok {
					sb.WriteString(line)
				}
				h.bufMu.Unlock()
			}
			continue
		}

		h.execute(client, line)
	}
}

func (h *hub) execute(client *registry.Handle, line string) {
	ctx := libctx.New[string](nil)
	ctx.Store("client", client)

	if e := h.disp.Execute(line, ctx); e != nil {
		_ = h.srv.Write(client, []byte(liberr.Line(e)+"\n"))
	}
}

func registerCommands(d *dispatcher.Dispatcher, gp *gpio.SimCollaborator, hs *hoststats.GopsutilReader, sensors map[string]sensor.Driver) liberr.Error {
	handlers := []struct {
		id     int
		target string
		action string
		fn     dispatcher.Handler
	}{
		{0, "gpio", "set", gpioSetHandler(gp)},
		{1, "gpio", "get", gpioGetHandler(gp)},
		{2, "sensor", "temperature", sensorHandler(sensors, sensor.Driver.GetTemperature)},
		{3, "sensor", "humidity", sensorHandler(sensors, sensor.Driver.GetHumidity)},
		{4, "sensor", "pressure", sensorHandler(sensors, sensor.Driver.GetPressure)},
		{5, "host", "stats", hostStatsHandler(hs)},
	}

	for _, hd := range handlers {
		if e := d.Register(hd.id, dispatcher.Command{Target: hd.target, Action: hd.action, Handler: hd.fn}); e != nil {
			return e
		}
	}

	return nil
}

func gpioSetHandler(gp *gpio.SimCollaborator) dispatcher.Handler {
	return func(ctx libctx.Config[string], args []string, argc int) {
		if argc < 2 {
			return
		}

		state := gpio.Low
		if args[1] == "1" {
			state = gpio.High
		}

		reply := "ok"
		if e := gp.Set(args[0], state); e != nil {
			reply = liberr.Line(e)
		}

		forward(ctx, reply)
	}
}

func gpioGetHandler(gp *gpio.SimCollaborator) dispatcher.Handler {
	return func(ctx libctx.Config[string], args []string, argc int) {
		if argc < 1 {
			return
		}

		st, e := gp.Get(args[0])
		if e != nil {
			forward(ctx, liberr.Line(e))
			return
		}

		if st == gpio.High {
			forward(ctx, "1")
		} else {
			forward(ctx, "0")
		}
	}
}

func sensorHandler(sensors map[string]sensor.Driver, read func(sensor.Driver) (float64, liberr.Error)) dispatcher.Handler {
	return func(ctx libctx.Config[string], args []string, argc int) {
		if argc < 1 {
			return
		}

		s, ok := sensors[args[0]]
		if !ok {
			forward(ctx, liberr.Line(liberr.InvalidArgument.Error(nil)))
			return
		}

		v, e := read(s)
		if e != nil {
			forward(ctx, liberr.Line(e))
			return
		}

		forward(ctx, strconv.FormatFloat(v, 'f', 2, 64))
	}
}

func hostStatsHandler(hs *hoststats.GopsutilReader) dispatcher.Handler {
	return func(ctx libctx.Config[string], args []string, argc int) {
		snap, e := hs.Read()
		if e != nil {
			forward(ctx, liberr.Line(e))
			return
		}

		forward(ctx, fmt.Sprintf("cpu=%.1f mem=%.1f uptime=%d", snap.CPUPercent, snap.MemPercent, snap.UptimeSecs))
	}
}

func forward(ctx libctx.Config[string], msg string) {
	v, ok := ctx.Load("client")
	if !ok {
		return
	}

	client, ok := v.(*registry.Handle)
	if !ok {
		return
	}

	client.IO.Lock()
	_, _ = client.Conn.Write([]byte(msg + "\n"))
	client.IO.Unlock()
}
