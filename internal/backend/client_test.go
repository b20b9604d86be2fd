package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"commentrelay/internal/comment"
	"commentrelay/pkg/logx"
)

func storedComment() *comment.Comment {
	return &comment.Comment{
		CommentID:      "11111111-2222-3333-4444-555555555555",
		Commentor:      "Ada",
		EMail:          "ada@example.com",
		Body:           "Nice post!",
		ParentID:       "2026/03/some-post",
		Created:        "2026-03-01T09:00:00Z",
		Branch:         "comments-abc",
		RepositoryPath: "/src/comments/2026/03/11111111-2222-3333-4444-555555555555.json",
	}
}

func TestPushCommentFile(t *testing.T) {
	var req *http.Request
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Error(err)
		}
		req, form = r, r.PostForm
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Repository: "acme/blog"}, logx.Nop())
	cm := storedComment()
	if err := c.PushCommentFile(context.Background(), "tok-1", cm); err != nil {
		t.Fatalf("PushCommentFile: %v", err)
	}

	if req.URL.Path != "/2.0/repositories/acme/blog/src" {
		t.Errorf("path = %q", req.URL.Path)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer tok-1" {
		t.Errorf("Authorization = %q", got)
	}
	if got := form.Get("author"); got != `"Ada" <ada@example.com>` {
		t.Errorf("author = %q", got)
	}
	if got := form.Get("message"); got != "Comment from Ada" {
		t.Errorf("message = %q", got)
	}
	if got := form.Get("branch"); got != "comments-abc" {
		t.Errorf("branch = %q", got)
	}

	raw := form.Get(cm.StoragePath())
	if raw == "" {
		t.Fatalf("no file content at %q; form keys %v", cm.StoragePath(), formKeys(form))
	}
	var stored comment.Comment
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		t.Fatalf("file content is not JSON: %v", err)
	}
	if stored.CommentID != cm.CommentID || stored.Body != cm.Body {
		t.Errorf("stored file = %+v", stored)
	}
}

func formKeys(form map[string][]string) []string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	return keys
}

func TestOpenPullRequest(t *testing.T) {
	var req *http.Request
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req = r
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Error(err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Repository: "acme/blog", MainBranch: "master"}, logx.Nop())
	if err := c.OpenPullRequest(context.Background(), "tok-1", storedComment()); err != nil {
		t.Fatalf("OpenPullRequest: %v", err)
	}

	if req.URL.Path != "/2.0/repositories/acme/blog/pullrequests" {
		t.Errorf("path = %q", req.URL.Path)
	}
	if got := payload["title"]; got != "Comment from Ada" {
		t.Errorf("title = %v", got)
	}
	if got := payload["close_source_branch"]; got != true {
		t.Errorf("close_source_branch = %v", got)
	}
	src := payload["source"].(map[string]any)
	if got := src["branch"].(map[string]any)["name"]; got != "comments-abc" {
		t.Errorf("source branch = %v", got)
	}
	dst := payload["destination"].(map[string]any)
	if got := dst["branch"].(map[string]any)["name"]; got != "master" {
		t.Errorf("destination branch = %v", got)
	}
}

func TestNonSuccessStatusIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "no such repo"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Repository: "acme/blog"}, logx.Nop())
	err := c.PushCommentFile(context.Background(), "tok-1", storedComment())
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("err = %v, want status 404 mention", err)
	}
	if err := c.OpenPullRequest(context.Background(), "tok-1", storedComment()); err == nil {
		t.Fatal("OpenPullRequest accepted 404")
	}
}

func TestSourceURLStripsAPIHost(t *testing.T) {
	c := NewClient(Config{BaseURL: "https://api.bitbucket.org", Repository: "acme/blog"}, logx.Nop())
	if got := c.SourceURL(); got != "https://bitbucket.org/acme/blog/src" {
		t.Errorf("SourceURL = %q", got)
	}
}
