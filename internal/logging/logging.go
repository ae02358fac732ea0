// Package logging constructs the process-wide zap logger. Components take
// a *zap.Logger in their constructors rather than reaching for a package
// global, so tests can inject zaptest loggers.
package logging

import "go.uber.org/zap"

// New builds a production JSON logger, or a development console logger
// when dev is true (verbose, human-readable — for local runs).
func New(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
