// Package api exposes the crew over HTTP with gin: submitting and inspecting
// asynchronous runs, listing and invoking the built-in tools, health and
// Prometheus-style metrics. Run and tool routes can be guarded by bearer
// tokens from the auth package.
package api
