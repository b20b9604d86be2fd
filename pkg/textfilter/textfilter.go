package textfilter

import (
	"net/mail"
	"net/url"
	"strings"
)

var escapes = map[rune]string{
	'<': "&lt;",
	'>': "&gt;",
	'&': "&amp;",
	'"': "&quot;",
}

// Escape replaces characters that are sensitive in HTML with their entities.
// It avoids script injection when submitted text is echoed back in responses
// or error messages.
func Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)
	for _, r := range s {
		if rep, ok := escapes[r]; ok {
			b.WriteString(rep)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// StripLine returns a plain-text equivalent of a potentially HTML-containing
// string. Designed for single-line input fields: it drops tags and entities
// and terminates at the first CR or LF.
func StripLine(s string) string {
	var (
		b        strings.Builder
		tagMode  bool
		ampMode  bool
	)
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\r' {
			break
		}
		if tagMode {
			if r == '>' {
				tagMode = false
			}
			continue
		}
		if ampMode {
			if r == ';' || r == ' ' {
				ampMode = false
			}
			continue
		}
		switch r {
		case '<':
			tagMode = true
		case '&':
			ampMode = true
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsEmail reports whether the candidate looks like a valid email address.
func IsEmail(candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return false
	}
	addr, err := mail.ParseAddress(candidate)
	if err != nil {
		return false
	}
	// ParseAddress accepts display names ("A <a@b.c>"); the form field must be
	// a bare address.
	if addr.Address != candidate {
		return false
	}
	// Require a dot in the domain; "user@localhost" is not a web commenter.
	at := strings.LastIndex(addr.Address, "@")
	return at > 0 && strings.Contains(addr.Address[at+1:], ".")
}

// IsURL reports whether the candidate looks like a valid http(s) URL.
func IsURL(candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return false
	}
	u, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
