package server

import (
	"context"
	"fmt"
	"strings"

	"commentrelay/pkg/logx"
	"commentrelay/pkg/textfilter"
)

// validate runs the mandatory-field checks. We want a message, a name and an
// email; everything else is optional but must be well-formed when present.
func (s *Server) validate(ctx context.Context, sub *submission) []string {
	var problems []string

	if sub.EMail == "" || !textfilter.IsEmail(sub.EMail) {
		problems = append(problems, fmt.Sprintf("%q seems not to be a valid eMail", sub.EMail))
	}
	if strings.TrimSpace(sub.Commentor) == "" {
		problems = append(problems, "Please provide a name")
	}
	if strings.TrimSpace(sub.Body) == "" {
		problems = append(problems, "Some content for your comment is required!")
	}
	if w := strings.TrimSpace(sub.WebSite); w != "" && !textfilter.IsURL(w) {
		problems = append(problems, "Please provide a valid URL or none")
	}
	if strings.TrimSpace(sub.ParentID) == "" {
		problems = append(problems, "I can't identify which post you try to comment, Sorry")
	}

	if s.captcha != nil {
		ok, err := s.captcha.Verify(ctx, sub.RResponse)
		if err != nil {
			s.log.Warn("captcha verification errored", logx.Err(err))
			ok = false
		}
		if !ok {
			problems = append(problems, "Sorry, the captcha response wasn't valid, you might want to try again")
		}
	}

	return problems
}
