package orchestrator

import "log/slog"

// SlogLogger adapts log/slog to the Logger interface; every cmd/orchestrator
// wires this in.
type SlogLogger struct {
	l *slog.Logger
}

func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{l: l}
}

func (s *SlogLogger) Debug(msg string, args ...interface{}) { s.l.Debug(msg, args...) }
func (s *SlogLogger) Info(msg string, args ...interface{})  { s.l.Info(msg, args...) }
func (s *SlogLogger) Warn(msg string, args ...interface{})  { s.l.Warn(msg, args...) }
func (s *SlogLogger) Error(msg string, args ...interface{}) { s.l.Error(msg, args...) }
