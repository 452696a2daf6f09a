// Package logging configures charmbracelet/log for the whole program and
// hands out prefixed component loggers whose level can be changed at
// runtime.
package logging
