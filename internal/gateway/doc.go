// Package gateway serves the ubwiyunge JSON API.
//
// # Overview
//
// The Gateway owns the store, the user directory, the conversation service,
// and the in-memory report registry, and exposes them over HTTP. It listens
// on a plain TCP address or joins a tailnet through tsnet when tailscale is
// enabled in the config.
//
// # Request Pipeline
//
// Every request passes through, in order:
//
//  1. instrument: Prometheus request counter and latency histogram keyed by
//     the matched route pattern, plus one slog line per request
//  2. rateLimit: per-client-IP token buckets for paths under /api/
//  3. the route mux, where user-scoped routes are wrapped by
//     auth.RequireUser, which resolves X-User-ID against the directory
//
// # Routes
//
// Health and metrics:
//
//	GET  /health                          liveness, plain "OK"
//	GET  /health/ready                    store ping
//	GET  /api/health                      JSON status with uptime
//	GET  /metrics                         Prometheus exposition (configurable path)
//
// Users:
//
//	POST /api/users/register              create a citizen or leader
//	POST /api/users/login                 check credentials, return the user
//	GET  /api/users/me                    current user (X-User-ID)
//	PUT  /api/users/me                    update profile fields
//
// Messaging (X-User-ID required):
//
//	GET  /api/contacts                    contacts the user may message
//	POST /api/contacts                    add an ad-hoc contact
//	GET  /api/conversations               conversations, newest first
//	POST /api/conversations               get or mint a conversation id
//	GET  /api/conversations/{id}/messages messages in chronological order
//	POST /api/conversations/{id}/read     mark incoming messages read
//	POST /api/messages                    send; honors Idempotency-Key
//	POST /api/messages/quick              send to a contact by id
//	GET  /api/messages/unread-count       total unread for the user
//
// Reports (public):
//
//	GET  /api/reports                     filter by status, category, priority, search
//	POST /api/reports                     submit
//	GET  /api/reports/recent              newest few
//	GET  /api/reports/{id}
//	PUT  /api/reports/{id}                update status, priority, assignment
//	POST /api/reports/{id}/comments
//	GET  /api/stats                       report counts plus user totals
//
// # Errors
//
// Errors are returned as {"error": "..."}. Validation errors map to 400,
// unknown users to 401, messaging a user outside one's contacts to 403,
// missing entities to 404, duplicate emails and in-flight idempotent sends
// to 409, and rate limiting to 429.
//
// # Idempotent Sends
//
// A POST /api/messages carrying Idempotency-Key is claimed in a
// dedupe.Cache under the sender's id. A retry after success returns the
// original message with 200; a retry while the first attempt is still
// running gets 409. Failed sends release the key so the client can retry.
//
// # Shutdown
//
// Run blocks until its context is canceled, then calls Shutdown with a
// five second budget. Shutdown stops the HTTP server, leaves the tailnet,
// closes the store, and stops the background sweepers of the dedupe cache
// and the rate limiter.
package gateway
