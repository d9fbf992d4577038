// Package rate provides the in-process, per-source fixed-window request limiter
// that fronts every keygate HTTP route.
//
// # Window semantics
//
// One bucket per source IP holds {windowStart, count}. When more than one
// window has passed since windowStart the bucket resets to count=1, otherwise
// count is incremented. A request is denied when the post-increment count
// exceeds the category ceiling (Strict or Relaxed). Idle buckets are swept at
// most once per window.
//
// # What this package must NOT do
//
//   - Share state across processes (each replica keeps its own buckets).
//   - Decide HTTP responses (the httpapi middleware maps decisions to 429).
package rate
