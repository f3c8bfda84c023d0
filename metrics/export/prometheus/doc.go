// Package prometheus renders engine metrics in the Prometheus text
// exposition format without depending on a client library. The engine's
// counters are plain atomics; Render walks a snapshot and prints it.
package prometheus
