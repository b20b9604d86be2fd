// Package token obtains and caches the OAuth client-credentials bearer token
// used for every call to the source-control backend.
//
// One Cache instance is shared by all pipeline stages. A cold or expired
// cache triggers exactly one exchange no matter how many stages ask
// concurrently (single-flight); everyone waits for that one result. A failed
// refresh keeps the previous token in place so the next caller retries from
// scratch.
package token
