// Package player implements the playback controller: a small state machine
// over an audio.Device that accepts imperative commands (play, pause,
// toggle, stop, rate, seek, reset) and reconciles its state with the
// events the device reports asynchronously.
package player
