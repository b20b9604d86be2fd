// Package storage provides the optional SQLite audit journal.
//
// One row is appended per pipeline transition (received, stored, retry,
// opened, terminal) so an operator can reconstruct what happened to a
// comment after the fact. The journal is strictly observational: the
// pipeline runs identically with it disabled, and journal write failures are
// logged, never surfaced.
package storage
