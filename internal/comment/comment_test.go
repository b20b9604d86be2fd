package comment

import (
	"strings"
	"testing"
	"time"
)

func TestEnsureIdentityAssignsOnce(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 5, 17, 12, 0, 0, 0, time.UTC)

	c := &Comment{Commentor: "Ann", EMail: "ann@x.com", Body: "Hi", ParentID: "post-1"}
	c.EnsureIdentity(now)

	if c.CommentID == "" {
		t.Fatal("expected an id to be assigned")
	}
	if c.Created != "2024-05-17T12:00:00Z" {
		t.Fatalf("Created = %q", c.Created)
	}

	id, created := c.CommentID, c.Created
	c.EnsureIdentity(now.Add(48 * time.Hour))
	if c.CommentID != id || c.Created != created {
		t.Fatalf("identity was reassigned: %q/%q -> %q/%q", id, created, c.CommentID, c.Created)
	}
}

func TestStoragePathIsPureFunctionOfDateAndID(t *testing.T) {
	t.Parallel()
	c := &Comment{CommentID: "abc123", Created: "2024-05-17T09:30:00Z"}

	want := "/src/comments/2024/05/abc123.json"
	for i := 0; i < 3; i++ {
		// Retry-relevant mutations must not move the target.
		c.RetryCount = i
		c.Branch = NewBranch()
		if got := c.StoragePath(); got != want {
			t.Fatalf("StoragePath() = %q, want %q", got, want)
		}
	}
}

func TestAuthorLineAndCommitMessage(t *testing.T) {
	t.Parallel()
	c := &Comment{Commentor: "Ann", EMail: "ann@x.com"}
	if got := c.AuthorLine(); got != `"Ann" <ann@x.com>` {
		t.Fatalf("AuthorLine() = %q", got)
	}
	if got := c.CommitMessage(); got != "Comment from Ann" {
		t.Fatalf("CommitMessage() = %q", got)
	}
}

func TestNewBranchIsRequestScoped(t *testing.T) {
	t.Parallel()
	a, b := NewBranch(), NewBranch()
	if !strings.HasPrefix(a, "comments-") {
		t.Fatalf("branch %q missing prefix", a)
	}
	if a == b {
		t.Fatal("expected fresh branch names per call")
	}
}

func TestPreview(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
		n    int
		want string
	}{
		{name: "short", body: "Hi", n: 100, want: "Hi"},
		{name: "exact", body: strings.Repeat("a", 100), n: 100, want: strings.Repeat("a", 100)},
		{name: "truncated", body: strings.Repeat("b", 150), n: 100, want: strings.Repeat("b", 100)},
		{name: "multibyte", body: strings.Repeat("ä", 150), n: 100, want: strings.Repeat("ä", 100)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			c := &Comment{Body: tt.body}
			if got := c.Preview(tt.n); got != tt.want {
				t.Fatalf("Preview(%d) = %q, want %q", tt.n, got, tt.want)
			}
		})
	}
}
