// Package process supervises test-binary attempts as OS processes.
//
// Every attempt runs as the leader of its own process group (POSIX)
// or inside a dedicated Job Object (Windows), so a single signal or
// job termination reaches every descendant the test spawned, not just
// the immediate child. Output is captured concurrently with execution
// into bounded in-memory buffers that spill to a temp file past their
// limit, avoiding the classic pipe deadlock where a child blocks on a
// full stdout pipe while the parent blocks on stdin.
package process
