// Package httpapi serves the keygate JSON API over net/http.
//
// Every /api route passes through the per-IP rate limiter before reaching
// its handler. Admin routes, admin login and registration use the strict
// ceiling; sign-in, session, identity and logout routes use the relaxed one. Denied
// requests get 429 with a Retry-After header and a type of "admin",
// "security" or "traffic".
//
// Error bodies are {"error": "<generic message>", "type": "<category>"}.
// Internal failures are logged server-side and never echoed to the client.
//
// # What this package must NOT do
//
//   - Make authentication decisions (delegates to keygate.Engine).
//   - Share rate-limit state across processes.
package httpapi
