// Package logging provides the contextual logger shared by every
// component of the event-delivery core.
package logging

import (
	"github.com/sirupsen/logrus"
)

// Loggers wraps a logrus.FieldLogger with the correlation id and process
// name fields every component is expected to attach to its WARN/ERROR
// output, per the error-handling design's "never silent drops" rule.
type Loggers struct {
	entry *logrus.Entry
}

// New builds a Loggers around the given logrus.Logger. Pass nil to get a
// sensible standalone default (text formatter, INFO level, stderr).
func New(base *logrus.Logger) Loggers {
	if base == nil {
		base = logrus.New()
	}
	return Loggers{entry: logrus.NewEntry(base)}
}

// With returns a copy of l with additional structured fields attached.
func (l Loggers) With(fields logrus.Fields) Loggers {
	return Loggers{entry: l.entry.WithFields(fields)}
}

// WithEvent attaches the correlation id and process name fields read from
// an event-shaped map, matching the two fields the core is permitted to
// read from an otherwise-opaque event.
func (l Loggers) WithEvent(correlationID, processName string) Loggers {
	fields := logrus.Fields{}
	if correlationID != "" {
		fields["correlation_id"] = correlationID
	}
	if processName != "" {
		fields["process_name"] = processName
	}
	if len(fields) == 0 {
		return l
	}
	return l.With(fields)
}

func (l Loggers) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l Loggers) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l Loggers) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l Loggers) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

func (l Loggers) Debug(args ...interface{}) { l.entry.Debug(args...) }
func (l Loggers) Info(args ...interface{})  { l.entry.Info(args...) }
func (l Loggers) Warn(args ...interface{})  { l.entry.Warn(args...) }
func (l Loggers) Error(args ...interface{}) { l.entry.Error(args...) }
