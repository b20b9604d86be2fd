package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"commentrelay/internal/comment"
	"commentrelay/pkg/logx"
)

const userAgent = "commentrelay/1.0"

type Config struct {
	// BaseURL is the API host, e.g. "https://api.bitbucket.org".
	BaseURL string
	// Repository in "workspace/slug" form.
	Repository string
	// MainBranch is the pull-request destination. Defaults to "main".
	MainBranch string
	Timeout    time.Duration
}

type Client struct {
	cfg    Config
	client *http.Client
	log    logx.Logger
}

func NewClient(cfg Config, log logx.Logger) *Client {
	if cfg.MainBranch == "" {
		cfg.MainBranch = "main"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// MainBranch reports the configured pull-request destination branch.
func (c *Client) MainBranch() string { return c.cfg.MainBranch }

// SourceURL is a human-facing link to the stored comments, used in
// notifications.
func (c *Client) SourceURL() string {
	host := strings.TrimRight(c.cfg.BaseURL, "/")
	host = strings.Replace(host, "api.", "", 1)
	return host + "/" + c.cfg.Repository + "/src"
}

// PushCommentFile creates the branch and commits the comment JSON at its
// storage path, all in one form-encoded request.
func (c *Client) PushCommentFile(ctx context.Context, bearer string, cm *comment.Comment) error {
	body, err := json.MarshalIndent(cm, "", "  ")
	if err != nil {
		return fmt.Errorf("encode comment: %w", err)
	}

	form := url.Values{}
	form.Set("author", cm.AuthorLine())
	form.Set("message", cm.CommitMessage())
	form.Set("branch", cm.Branch)
	form.Set(cm.StoragePath(), string(body))

	target := fmt.Sprintf("%s/2.0/repositories/%s/src", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Repository)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("User-Agent", userAgent)

	return c.do(req, "source push")
}

// OpenPullRequest opens a pull request merging the comment's branch into the
// main branch. The source branch is closed on merge.
func (c *Client) OpenPullRequest(ctx context.Context, bearer string, cm *comment.Comment) error {
	branch := cm.Branch
	if branch == "" {
		branch = "unknown"
	}
	payload := map[string]any{
		"title":       "Comment from " + cm.Commentor,
		"description": "New web comment from " + cm.EMail,
		"source": map[string]any{
			"branch":     map[string]any{"name": branch},
			"repository": map[string]any{"full_name": c.cfg.Repository},
		},
		"destination": map[string]any{
			"branch": map[string]any{"name": c.cfg.MainBranch},
		},
		"close_source_branch": true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	target := fmt.Sprintf("%s/2.0/repositories/%s/pullrequests", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Repository)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("User-Agent", userAgent)

	return c.do(req, "pull request")
}

func (c *Client) do(req *http.Request, op string) error {
	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		c.log.Debug("backend rejected request",
			logx.String("op", op),
			logx.Int("status", res.StatusCode),
			logx.String("body", strings.TrimSpace(string(snippet))))
		return fmt.Errorf("%s: unexpected status %d", op, res.StatusCode)
	}
	return nil
}
