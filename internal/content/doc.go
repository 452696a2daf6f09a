// Package content keeps the bundled sites/terms dataset in sync between
// memory, a persistent key-value store and the static build-time copy.
// It also provides the read-only views (categories, tag cloud, lookups,
// related items and search) that content screens are built from.
package content
