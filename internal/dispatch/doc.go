// Package dispatch provides the in-process publish/subscribe bus connecting
// the pipeline stages.
//
// Topics are plain strings. Subscribers register a named handler; publishers
// fire and forget. Messages published with no subscriber are dropped — every
// producer and consumer lives in this process, so there is nothing to
// persist.
//
// # Delivery semantics
//
// Handlers for one topic run in subscription order for each message, and a
// failing (or panicking) handler never blocks the handlers after it. Across
// topics no ordering is guaranteed. All handler execution happens on one
// shared worker pool: a publish enqueues a delivery task, a worker runs that
// message's handlers back to back while other messages proceed on other
// workers.
package dispatch
