// Package server is the HTTP ingress for new comments.
//
// It owns everything that happens before a comment enters the pipeline:
// CORS for the configured blog origins, JSON decoding, mandatory-field and
// captcha checks, and capturing request metadata. A comment that passes is
// published to the ingestion topic and the submitter gets an immediate
// accept response; everything after that is invisible to them.
package server
