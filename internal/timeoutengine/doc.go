// Package timeoutengine drives the per-attempt deadline timers: slow
// (informational, attempt keeps running), terminate-after (graceful
// kill), and leak (declares the attempt leaky once its process group
// outlives it past a grace period). It never touches an os/exec
// handle directly; it only emits Events for a caller to act on,
// keeping the scheduling policy testable without spawning processes.
package timeoutengine
