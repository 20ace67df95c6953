package pubsub

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/sirupsen/logrus"
)

// NewLogrusLogger adapts a logrus entry to watermill's logger interface.
func NewLogrusLogger(entry *logrus.Entry) watermill.LoggerAdapter {
	return logrusAdapter{entry: entry}
}

type logrusAdapter struct {
	entry *logrus.Entry
}

func (l logrusAdapter) Error(msg string, err error, fields watermill.LogFields) {
	l.with(fields).WithError(err).Error(msg)
}

func (l logrusAdapter) Info(msg string, fields watermill.LogFields) {
	l.with(fields).Info(msg)
}

func (l logrusAdapter) Debug(msg string, fields watermill.LogFields) {
	l.with(fields).Debug(msg)
}

func (l logrusAdapter) Trace(msg string, fields watermill.LogFields) {
	l.with(fields).Trace(msg)
}

func (l logrusAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return logrusAdapter{entry: l.with(fields)}
}

func (l logrusAdapter) with(fields watermill.LogFields) *logrus.Entry {
	return l.entry.WithFields(logrus.Fields(fields))
}
