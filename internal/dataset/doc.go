// Package dataset bundles the static sites and terms shipped with the
// binary and loads replacement bundles from disk.
package dataset
