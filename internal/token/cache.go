package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"commentrelay/pkg/logx"
)

const tokenPath = "/site/oauth2/access_token"

// expiryMargin is subtracted from the advertised lifetime so we refresh
// before the backend starts rejecting the token mid-request.
const expiryMargin = 30 * time.Second

var ErrNoToken = errors.New("token response missing access_token")

// Token is the cached bearer credential.
type Token struct {
	Access string
	Expiry time.Time
}

// Valid reports whether the token can still be used at the given time.
func (t Token) Valid(now time.Time) bool {
	if t.Access == "" {
		return false
	}
	return t.Expiry.IsZero() || now.Before(t.Expiry)
}

type Config struct {
	// Site is the OAuth host, e.g. "https://bitbucket.org".
	Site         string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Cache hands out the shared backend token. Safe for concurrent use.
type Cache struct {
	cfg    Config
	client *http.Client
	log    logx.Logger
	now    func() time.Time

	mu       sync.Mutex
	tok      Token
	inflight *exchangeCall
}

type exchangeCall struct {
	done chan struct{}
	tok  Token
	err  error
}

func NewCache(cfg Config, log logx.Logger) *Cache {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Cache{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		log:    log,
		now:    time.Now,
	}
	return c
}

// Get returns a valid token, performing at most one outbound exchange however
// many callers arrive concurrently. On refresh failure the stale token stays
// cached and the error is returned; nothing here is fatal.
func (c *Cache) Get(ctx context.Context) (Token, error) {
	c.mu.Lock()
	if c.tok.Valid(c.now()) {
		tok := c.tok
		c.mu.Unlock()
		return tok, nil
	}
	if call := c.inflight; call != nil {
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.tok, call.err
		case <-ctx.Done():
			return Token{}, ctx.Err()
		}
	}
	call := &exchangeCall{done: make(chan struct{})}
	c.inflight = call
	c.mu.Unlock()

	tok, err := c.exchange(ctx)

	c.mu.Lock()
	if err == nil {
		c.tok = tok
		call.tok = tok
	} else {
		// Keep any stale token; the next Get retries from scratch.
		call.err = err
	}
	c.inflight = nil
	c.mu.Unlock()
	close(call.done)

	return call.tok, call.err
}

func (c *Cache) exchange(ctx context.Context) (Token, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", "")
	form.Set("client_id", c.cfg.ClientID)

	endpoint := strings.TrimRight(c.cfg.Site, "/") + tokenPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)

	start := c.now()
	res, err := c.client.Do(req)
	if err != nil {
		c.log.Error("token exchange failed", logx.Err(err))
		return Token{}, fmt.Errorf("token exchange: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		c.log.Error("token endpoint rejected exchange",
			logx.Int("status", res.StatusCode),
			logx.String("body", strings.TrimSpace(string(body))))
		return Token{}, fmt.Errorf("token exchange: unexpected status %d", res.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return Token{}, fmt.Errorf("token exchange: decode: %w", err)
	}
	if payload.AccessToken == "" {
		return Token{}, ErrNoToken
	}

	tok := Token{Access: payload.AccessToken}
	if payload.ExpiresIn > 0 {
		tok.Expiry = start.Add(time.Duration(payload.ExpiresIn)*time.Second - expiryMargin)
	}
	c.log.Debug("token acquired", logx.Duration("took", c.now().Sub(start)), logx.Time("expiry", tok.Expiry))
	return tok, nil
}
