// Package main hosts the pagevault service entrypoint.
//
// Architecture overview:
//   - Scheduler: internal/schedule computes the next occurrence for every
//     configured task with robfig/cron semantics, sleeps until the earliest
//     one, and dispatches every task due at exactly that instant as one
//     concurrent batch. Occurrences that pass while a batch is running are
//     skipped, never queued.
//   - Solver client: internal/solver speaks the FlareSolverr JSON protocol
//     (sessions.create, request.get, sessions.destroy) over a single POST
//     endpoint. Logical failures arrive as status strings inside an HTTP 500
//     envelope and are decoded before transport errors are considered.
//   - Session directory: internal/session keeps one browser session per
//     target URL, validates a recorded session with a probe solve before
//     each reuse, replaces it on any failure, and destroys every session it
//     ever owned at shutdown.
//   - Capture pipeline: internal/runner acquires a session, solves the
//     target, writes the raw HTML to the configured sink (local/GCS/memory),
//     then best-effort journals a metadata row to Postgres and publishes a
//     Pub/Sub notification. A failed journal or publish never fails the
//     capture.
//   - Status API: internal/api serves /healthz, /readyz, /metrics, and
//     read-only /v1 endpoints for the schedule, the session map, and recent
//     capture events, behind an optional API key.
//   - Configuration & plumbing: Viper populates config from files and
//     PAGEVAULT_* env vars (FLARESOLVERR_URL is honored for the solver
//     address); zap provides structured logging; Prometheus counters and
//     histograms track captures, sessions, batches, and HTTP traffic.
//
// Operational notes:
//   - Concurrency model: one scheduling loop; parallelism is scoped to the
//     batch of tasks due at the same instant and joined before the next wait
//     is computed. The session directory serializes attempts per target and
//     runs distinct targets in parallel.
//   - Shutdown: SIGINT/SIGTERM cancels the loop between batches; session
//     cleanup runs on every exit path under a fresh context so the solving
//     proxy is not left holding browser sessions.
//   - The process exits on its own when no task has a future occurrence.
//
// Quick checklist:
//   - Point FLARESOLVERR_URL (or solver.base_url) at a running solving
//     proxy; request_timeout_seconds must exceed max_timeout_ms.
//   - Declare tasks in config.yaml: name, url, and a five-field cron
//     schedule (descriptors like @hourly work too).
//   - Run locally: go run . run --config config.yaml, or
//     pagevault fetch --url https://example.com for a one-shot capture.
package main
