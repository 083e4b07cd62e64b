// Package logger provides structured logging for admitdesk.
package logger

import "context"

// Logger is the structured logging contract used across the service.
// Every method takes a message followed by alternating key-value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	// With returns a child logger whose entries always carry the given fields.
	With(args ...any) Logger

	// WithContext returns a child logger carrying the request id from ctx, if any.
	WithContext(ctx context.Context) Logger
}

// Nop discards everything. Useful as a default in tests.
type Nop struct{}

func (Nop) Debug(string, ...any)                 {}
func (Nop) Info(string, ...any)                  {}
func (Nop) Warn(string, ...any)                  {}
func (Nop) Error(string, ...any)                 {}
func (n Nop) With(...any) Logger                 { return n }
func (n Nop) WithContext(context.Context) Logger { return n }
