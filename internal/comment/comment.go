// Package comment defines the unit of work flowing through the relay
// pipeline and the identity rules attached to it.
package comment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Comment is a user-submitted blog comment on its way into source control.
//
// The JSON field names are the wire format: they appear verbatim in the file
// committed to the repository, so renaming them is a breaking change for
// whatever renders the stored comments.
//
// Identity rule: CommentID and Created are assigned exactly once (by
// EnsureIdentity) and never altered afterwards. Everything the pipeline
// derives from them must be recomputed identically on every retry.
type Comment struct {
	CommentID string `json:"commentId,omitempty"`
	Commentor string `json:"Commentor"`
	EMail     string `json:"eMail"`
	WebSite   string `json:"webSite,omitempty"`
	Body      string `json:"Body"`
	Markdown  bool   `json:"markdown,omitempty"`
	ParentID  string `json:"parentId"`
	Created   string `json:"created,omitempty"`

	// Parameters carries request-derived metadata (client IP, headers).
	// Opaque to the pipeline; stored alongside the comment.
	Parameters map[string]string `json:"parameters,omitempty"`

	// Pipeline-assigned fields.
	RepositoryPath string `json:"repositoryPath,omitempty"`
	Branch         string `json:"branch,omitempty"`
	RetryCount     int    `json:"retryCount,omitempty"`
	FailureReason  string `json:"failureReason,omitempty"`
}

// EnsureIdentity assigns an id and creation timestamp when absent.
// Calling it again on the same comment is a no-op.
func (c *Comment) EnsureIdentity(now time.Time) {
	if c.CommentID == "" {
		c.CommentID = uuid.NewString()
	}
	if c.Created == "" {
		c.Created = now.UTC().Format(time.RFC3339)
	}
}

// CreatedTime parses the creation timestamp. Zero time when unset or invalid.
func (c *Comment) CreatedTime() time.Time {
	t, err := time.Parse(time.RFC3339, c.Created)
	if err != nil {
		return time.Time{}
	}
	return t
}

// StoragePath is the repository location of the comment file. It is a pure
// function of (creation date, id) so every retry addresses the same target.
func (c *Comment) StoragePath() string {
	t := c.CreatedTime()
	return fmt.Sprintf("/src/comments/%04d/%02d/%s.json", t.Year(), int(t.Month()), c.CommentID)
}

// AuthorLine renders the commit author in `"Name" <email>` form.
func (c *Comment) AuthorLine() string {
	return fmt.Sprintf("%q <%s>", c.Commentor, c.EMail)
}

// CommitMessage is the commit subject used for the storage push.
func (c *Comment) CommitMessage() string {
	return "Comment from " + c.Commentor
}

// NewBranch generates a fresh branch name for a storage attempt. Branch names
// are request-scoped, not content-scoped, so each call returns a new one.
func NewBranch() string {
	return "comments-" + uuid.NewString()
}

// Preview returns at most n characters of the body, for notifications.
func (c *Comment) Preview(n int) string {
	r := []rune(c.Body)
	if len(r) <= n {
		return c.Body
	}
	return string(r[:n])
}
