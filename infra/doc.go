// Package infra contains technical adapters: the zerolog logger, metrics
// sinks, the MQTT frame gateway and persistent process image stores. These
// packages depend only on the interfaces defined in the core packages.
package infra
