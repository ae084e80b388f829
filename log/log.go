// Package log centralizes the zap.Logger conventions every other package
// in this module follows: nil means "use a no-op logger", fields are
// named consistently (world, entity, system, phase), and construction
// helpers favor optional logger fields over a global singleton.
package log

import "go.uber.org/zap"

// Or returns logger if non-nil, otherwise a no-op logger, so "no logger
// configured" is safe rather than a nil-pointer panic. No other package in
// this module calls it; ecs.NewWorld performs the same nil check itself.
func Or(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// Development returns a human-readable logger suitable for local runs and
// tests.
func Development() *zap.Logger {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// Production returns a JSON logger suitable for deployed services.
func Production() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
