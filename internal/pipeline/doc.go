// Package pipeline implements the asynchronous comment relay: storing a
// submitted comment in the backend repository, opening a pull request for
// the created branch, and bounded retry for both.
//
// # Stages
//
// StoreStage consumes newly submitted comments, PullRequestStage consumes
// successfully stored ones. Both authorize against the backend with the
// shared token cache and push their failures into a per-stage RetryQueue.
// Queues drain on a cron schedule; an entry past the retry ceiling is
// published to the terminal-failure topic with a reason and leaves the
// pipeline for good.
//
// # Delivery guarantee
//
// At-least-once, never exactly-once: a comment whose storage response is
// lost after the write succeeded will be written again on retry, to the same
// repository path (the path is a pure function of creation date and id).
package pipeline
