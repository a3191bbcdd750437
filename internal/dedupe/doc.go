// Package dedupe provides an idempotency cache so a retried request within a
// configurable window replays the original result instead of repeating the
// side effect.
package dedupe
