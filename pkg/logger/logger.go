// Package logger provides component-tagged leveled logging for the bridge.
package logger

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(zerolog.InfoLevel).
		With().Timestamp().Logger()
)

// SetLevel adjusts the global log level. Unknown values are ignored.
func SetLevel(level string) {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		return
	}
	mu.Lock()
	log = log.Level(parsed)
	mu.Unlock()
}

func emit(event *zerolog.Event, component, msg string, fields map[string]interface{}) {
	event = event.Str("component", component)
	for key, value := range fields {
		event = event.Interface(key, value)
	}
	event.Msg(msg)
}

func logger() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := log
	return &l
}

func DebugC(component, msg string) {
	emit(logger().Debug(), component, msg, nil)
}

func DebugCF(component, msg string, fields map[string]interface{}) {
	emit(logger().Debug(), component, msg, fields)
}

func InfoC(component, msg string) {
	emit(logger().Info(), component, msg, nil)
}

func InfoCF(component, msg string, fields map[string]interface{}) {
	emit(logger().Info(), component, msg, fields)
}

func WarnC(component, msg string) {
	emit(logger().Warn(), component, msg, nil)
}

func WarnCF(component, msg string, fields map[string]interface{}) {
	emit(logger().Warn(), component, msg, fields)
}

func ErrorC(component, msg string) {
	emit(logger().Error(), component, msg, nil)
}

func ErrorCF(component, msg string, fields map[string]interface{}) {
	emit(logger().Error(), component, msg, fields)
}
