// Package notify pushes best-effort notifications about stored comments and
// terminal pipeline failures to the site operator.
//
// Notification loss is acceptable: sends are rate limited, failures are
// logged and dropped, and nothing here feeds back into the delivery
// pipeline. Two channels exist — a Pushover-style push API and an optional
// Telegram chat — and the stage is skipped entirely when neither is
// configured.
package notify
