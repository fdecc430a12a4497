// Package api hosts the read-only status HTTP server for operator access.
// Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/tasks for the schedule with each task's next occurrence.
//   - GET /v1/sessions for the target-to-session affinity map.
//   - GET /v1/captures/recent for the latest capture feed events.
package api
