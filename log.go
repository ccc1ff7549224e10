package memown

import "github.com/sirupsen/logrus"

var log logrus.FieldLogger = logrus.StandardLogger().WithField("prefix", "memown")

// SetLogger replaces the package logger. It is not synchronized with running
// allocations; call it during setup.
func SetLogger(l logrus.FieldLogger) {
	log = l.WithField("prefix", "memown")
}

// Logger returns the package logger, for allocators living in subpackages.
func Logger() logrus.FieldLogger {
	return log
}
