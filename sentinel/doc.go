// Package sentinel implements the monitoring agent: metric snapshots are
// evaluated against operator-defined thresholds to raise, refresh and
// resolve alerts, with a target registry for cron-driven periodic checks and
// bounded per-key metric history.
//
// The sentinel degrades gracefully on bad configuration: a threshold with an
// unrecognized condition is treated as never-violated and logged as a
// configuration warning rather than failing the evaluation.
package sentinel
