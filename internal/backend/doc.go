// Package backend talks to the source-control host that stores comments.
//
// Two calls exist: a form-encoded source push that creates a branch plus the
// comment file in one request, and a JSON pull-request creation merging that
// branch toward the main branch. Both are authorized with the bearer token
// from the token cache; neither retries on its own — retry policy belongs to
// the pipeline.
package backend
