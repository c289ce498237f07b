package monitoring

import "log"

// Logf emits alignment and registration diagnostics. It defaults to
// log.Printf and may be replaced with SetLogger, so batch runs can route
// per-frame progress elsewhere and tests can mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op
// logger, silencing registration diagnostics entirely.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
