// Package textfilter provides input hygiene for user-submitted comment fields.
//
// It covers three concerns:
//   - Escaping HTML-sensitive characters before text is echoed anywhere
//   - Stripping tags/entities from single-line fields
//   - Syntactic checks for email addresses and website URLs
//
// Captcha verification lives here too because it is part of the ingress
// acceptance decision, not of the delivery pipeline.
package textfilter
