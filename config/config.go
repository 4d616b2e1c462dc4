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

// Package config loads and validates the hub's configuration: built-in
// defaults, overridden by an optional YAML file, overridden in turn by
// PIHUBD_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"

	libval "github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	liberr "github.com/cedarwell/pihubd/errors"
)

// Server configures the TCP command server.
type Server struct {
	Port       string `mapstructure:"port" validate:"required"`
	MaxClients int    `mapstructure:"max_clients" validate:"gte=0"`
	MaxPending int    `mapstructure:"max_pending" validate:"gte=0"`
}

// Dispatcher configures command-table sizing. A zero Capacity falls back to
// the dispatcher package's default; the token-length and argument-count
// limits are used as given, and an empty Delimiter is rejected by
// dispatcher.New.
type Dispatcher struct {
	Capacity     int    `mapstructure:"capacity" validate:"gte=0"`
	MaxArgs      int    `mapstructure:"max_args" validate:"gte=0"`
	Delimiter    string `mapstructure:"delimiter"`
	MaxTargetLen int    `mapstructure:"max_target_len" validate:"gte=0"`
	MaxActionLen int    `mapstructure:"max_action_len" validate:"gte=0"`
	MaxArgLen    int    `mapstructure:"max_arg_len" validate:"gte=0"`
}

// Collaborators configures the simulated or real peripheral drivers.
type Collaborators struct {
	GPIOLines      []string `mapstructure:"gpio_lines"`
	SensorNames    []string `mapstructure:"sensor_names"`
	HostStatsEvery string   `mapstructure:"host_stats_every" validate:"omitempty"`
}

// Logging configures the structured logger.
type Logging struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warning error fatal panic"`
}

// Config is the top-level, validated configuration tree.
type Config struct {
	Server        Server        `mapstructure:"server"`
	Dispatcher    Dispatcher    `mapstructure:"dispatcher"`
	Collaborators Collaborators `mapstructure:"collaborators"`
	Logging       Logging       `mapstructure:"logging"`
}

// Default returns the configuration used when no file, env or flag
// overrides any field.
func Default() Config {
	return Config{
		Server: Server{
			Port:       "9090",
			MaxClients: 32,
			MaxPending: 16,
		},
		Dispatcher: Dispatcher{
			Capacity:     16,
			MaxArgs:      10,
			Delimiter:    " ",
			MaxTargetLen: 32,
			MaxActionLen: 32,
			MaxArgLen:    32,
		},
		Collaborators: Collaborators{
			GPIOLines:   []string{"13", "19", "26"},
			SensorNames: []string{"temperature", "humidity", "pressure"},
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// Load reads configuration from path (if non-empty), then PIHUBD_-prefixed
// environment variables, layered over Default. It does not validate; call
// Validate separately so a caller can decide how to report field errors.
func Load(path string) (Config, liberr.Error) {
	def := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, def)

	v.SetEnvPrefix("PIHUBD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, liberr.InvalidArgument.Error(err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, liberr.InvalidArgument.Error(err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, def Config) {
	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("server.max_clients", def.Server.MaxClients)
	v.SetDefault("server.max_pending", def.Server.MaxPending)
	v.SetDefault("dispatcher.capacity", def.Dispatcher.Capacity)
	v.SetDefault("dispatcher.max_args", def.Dispatcher.MaxArgs)
	v.SetDefault("dispatcher.delimiter", def.Dispatcher.Delimiter)
	v.SetDefault("dispatcher.max_target_len", def.Dispatcher.MaxTargetLen)
	v.SetDefault("dispatcher.max_action_len", def.Dispatcher.MaxActionLen)
	v.SetDefault("dispatcher.max_arg_len", def.Dispatcher.MaxArgLen)
	v.SetDefault("collaborators.gpio_lines", def.Collaborators.GPIOLines)
	v.SetDefault("collaborators.sensor_names", def.Collaborators.SensorNames)
	v.SetDefault("logging.level", def.Logging.Level)
}

// Validate runs struct-tag validation over cfg, collecting every failing
// field into a single InvalidArgument error.
func Validate(cfg Config) liberr.Error {
	e := liberr.InvalidArgument.Error(nil)
	hasParent := false

	if err := libval.New().Struct(cfg); err != nil {
		if ve, ok := err.(libval.ValidationErrors); ok {
			for _, fe := range ve {
				e.Add(fmt.Errorf("config field '%s' fails constraint '%s'", fe.Namespace(), fe.ActualTag()))
				hasParent = true
			}
		} else {
			e.Add(err)
			hasParent = true
		}
	}

	if !hasParent {
		return nil
	}

	return e
}
