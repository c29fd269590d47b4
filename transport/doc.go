// Package transport implements the transport socket (C8): a thin UDP
// wrapper over the standard library that adds the QoS and buffer-sizing
// knobs the pipeline needs and a poll()-style readiness check, without
// pulling in a full networking framework.
package transport
