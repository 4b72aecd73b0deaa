// Package pkg provides shared utilities for the DiVA firmware core.
//
// This package contains common functionality used across the interrupt,
// transport and task packages, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error values for setup-time failures
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with firmware component context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentBlink, "connection state changed", "state", "mounted")
//
// The interrupt path never logs.
//
// # Errors
//
// Setup errors are defined as sentinel values:
//
//	if errors.Is(err, pkg.ErrInvalidParameter) {
//	    // Fix the board profile
//	}
package pkg
