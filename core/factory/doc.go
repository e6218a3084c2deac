// Package factory provides a small registry of named constructors used to
// build pluggable modules (metrics sinks, IO store backends) from their
// configuration block.
package factory
