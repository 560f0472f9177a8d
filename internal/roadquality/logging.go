package roadquality

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf
// but may be replaced by SetLogf. Tests can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogf replaces the package logger. Passing nil installs a no-op logger.
func SetLogf(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
