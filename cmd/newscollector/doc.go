// Package main hosts the keyword news collector entrypoint.
//
// Architecture overview:
//   - Collection: the orchestrator lists every stored keyword and submits one
//     collection task per keyword to a bounded worker pool. Each task fans out
//     to every enabled platform (Naver, Daum, Google News) concurrently, merges
//     the results, advances the keyword's page cursor and persists new items in
//     a single transaction.
//   - Events: domain events are flushed to the event relay only after their
//     transaction commits. Handlers run on a second pool: a newly registered
//     keyword is collected immediately, and subscription changes create or
//     prune keywords. Every event also reaches the log, Prometheus and publish
//     sinks.
//   - Persistence: Postgres via pgx when database.dsn is set, with embedded
//     migrations; otherwise an in-memory store. Raw batches can be archived to
//     GCS, a local directory or memory.
//   - Operations: the serve command exposes /healthz, /readyz and /metrics and
//     triggers CollectAll on a schedule.
//
// Quick checklist:
//   - Configure env vars with the NEWSFEED_ prefix, e.g. NEWSFEED_DATABASE_DSN,
//     NEWSFEED_PLATFORMS_NAVER_CLIENT_ID, NEWSFEED_COLLECTION_PAGE_SIZE.
//   - Run locally: go run ./cmd/newscollector serve --config config.yaml.
//   - The user and feed commands only see state across invocations when a
//     database DSN is configured.
package main
