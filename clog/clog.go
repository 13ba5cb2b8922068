// Package clog provides the small pluggable logging facade used across the
// engine components (adp, acmp, aecp, engine). A Clog is safe for concurrent
// use for enable/disable toggling; the engine itself is single-threaded so the
// log calls themselves never race with state mutation.
package clog

import (
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// LogProvider is the minimal level set the engine needs: Critical, Error,
// Warn and Debug. Info-level chatter (one line per tick) belongs at Debug.
type LogProvider interface {
	Critical(format string, v ...interface{})
	Error(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Debug(format string, v ...interface{})
}

// Clog is the logging handle embedded by engine components.
type Clog struct {
	provider LogProvider
	// is log output enabled, 1: enable, 0: disable
	has uint32
}

// NewLogger creates a new Clog backed by zerolog's console writer, tagged
// with component. Output is disabled until LogMode(true) is called, matching
// the opt-in default of the engine it backs.
func NewLogger(component string) Clog {
	return Clog{
		provider: NewZerologProvider(component),
		has:      0,
	}
}

// LogMode enables or disables log output for this Clog.
func (sf *Clog) LogMode(enable bool) {
	if enable {
		atomic.StoreUint32(&sf.has, 1)
	} else {
		atomic.StoreUint32(&sf.has, 0)
	}
}

// SetLogProvider overrides the log backend (e.g. to route into an
// application's own logger).
func (sf *Clog) SetLogProvider(p LogProvider) {
	if p != nil {
		sf.provider = p
	}
}

// Critical logs a CRITICAL level message.
func (sf Clog) Critical(format string, v ...interface{}) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Critical(format, v...)
	}
}

// Error logs an ERROR level message.
func (sf Clog) Error(format string, v ...interface{}) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Error(format, v...)
	}
}

// Warn logs a WARN level message.
func (sf Clog) Warn(format string, v ...interface{}) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Warn(format, v...)
	}
}

// Debug logs a DEBUG level message.
func (sf Clog) Debug(format string, v ...interface{}) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Debug(format, v...)
	}
}

// zerologProvider backs LogProvider with github.com/rs/zerolog, the
// structured logger used throughout the engine.
type zerologProvider struct {
	logger zerolog.Logger
}

var _ LogProvider = zerologProvider{}

// NewZerologProvider builds a LogProvider writing to stderr, tagged with
// component (e.g. "adp", "acmp", "aecp", "engine").
func NewZerologProvider(component string) LogProvider {
	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}).
		With().Timestamp().Str("component", component).Logger()
	return zerologProvider{logger: l}
}

func (sf zerologProvider) Critical(format string, v ...interface{}) {
	sf.logger.Error().Str("level", "critical").Msgf(format, v...)
}

func (sf zerologProvider) Error(format string, v ...interface{}) {
	sf.logger.Error().Msgf(format, v...)
}

func (sf zerologProvider) Warn(format string, v ...interface{}) {
	sf.logger.Warn().Msgf(format, v...)
}

func (sf zerologProvider) Debug(format string, v ...interface{}) {
	sf.logger.Debug().Msgf(format, v...)
}
