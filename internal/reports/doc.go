// Package reports keeps the community issue reports shown on the dashboard.
//
// Reports live in memory only. A Registry is seeded from Samples at startup
// and supports filtered listing, creation, partial updates, comments and
// per-status counts. Reports are ordered newest first.
package reports
