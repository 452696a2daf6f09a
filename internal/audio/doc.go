// Package audio provides the output device the playback controller drives:
// an oto/v3 backed device for real playback, a recording mock for tests
// and headless runs, and the PCM/WAV helpers both of them share.
package audio
