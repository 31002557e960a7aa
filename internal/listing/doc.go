// Package listing interprets the textual dialects a built test binary
// emits in response to "--list --format <dialect>", turning already
// captured output into testspec.TestInstance values that feed plan
// construction. Invoking a binary in list mode is internal/planner's
// job; this package only parses what comes back.
//
// Two dialects are supported out of the box:
//
//   - terse: the default libtest-style dialect, one line per test in
//     the form "path::to::test: test" (and "... benchmark" variants),
//     optionally interleaved with an ignore marker.
//   - json: a newline-delimited JSON dialect some wrapped harnesses
//     (run behind a list-wrapper script) emit instead, one object per
//     test with at least "test-name" and "ignored" fields.
//
// Additional dialects register themselves in a Registry the same way.
package listing
