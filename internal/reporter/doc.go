// Package reporter renders run summaries, run-over-run comparisons,
// and duration trend reports as self-contained Markdown, HTML, or
// JSON — no template files or CDN assets required.
package reporter
