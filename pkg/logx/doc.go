// Package logx is a thin structured-logging layer over zerolog.
//
// It gives every component the same small Logger surface (Debug/Info/Warn/
// Error plus typed Fields) and keeps sink wiring (console, optional file)
// in one place.
package logx
