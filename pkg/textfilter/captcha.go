package textfilter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultCaptchaVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

// CaptchaVerifier checks reCAPTCHA v2 responses against the siteverify API.
//
// A verifier with an empty secret accepts everything; the captcha switch is
// the presence of the secret, matching how the service is deployed without
// captcha in test environments.
type CaptchaVerifier struct {
	Secret    string
	VerifyURL string
	Client    *http.Client
}

func (v *CaptchaVerifier) Verify(ctx context.Context, response string) (bool, error) {
	if strings.TrimSpace(v.Secret) == "" {
		return true, nil
	}
	endpoint := v.VerifyURL
	if endpoint == "" {
		endpoint = defaultCaptchaVerifyURL
	}
	client := v.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	form := url.Values{}
	form.Set("secret", v.Secret)
	form.Set("response", response)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("captcha verify: %w", err)
	}
	defer res.Body.Close()

	var body struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("captcha verify: decode: %w", err)
	}
	return body.Success, nil
}
