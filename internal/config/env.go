package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variable names. These match what the service has historically
// been configured with, so existing deployments keep working unchanged.
const (
	EnvPort          = "PORT"
	EnvRepositoryURL = "RepositoryURL"
	EnvOauthURL      = "OauthURL"
	EnvClientToken   = "ClientToken"
	EnvClientSecret  = "ClientSecret"
	EnvCaptchaSecret = "CaptchaSecret"
	EnvPushToken     = "PushToken"
	EnvPushUser      = "PushUser"
)

// ApplyEnv overrides config fields from the environment. Unset variables
// leave the file-provided values alone.
func ApplyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv(EnvPort)); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 || p > 65535 {
			return fmt.Errorf("%s: invalid port %q", EnvPort, v)
		}
		cfg.Server.Port = p
	}
	if v := strings.TrimSpace(os.Getenv(EnvRepositoryURL)); v != "" {
		cfg.Repository.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvOauthURL)); v != "" {
		cfg.OAuth.Site = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvClientToken)); v != "" {
		cfg.OAuth.ClientID = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvClientSecret)); v != "" {
		cfg.OAuth.ClientSecret = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvCaptchaSecret)); v != "" {
		cfg.Server.CaptchaSecret = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPushToken)); v != "" {
		cfg.Push.Token = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPushUser)); v != "" {
		cfg.Push.User = v
	}
	return nil
}

// Validate rejects configurations the pipeline cannot run with.
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Repository.URL) == "" {
		return fmt.Errorf("repository.url (or %s) is required", EnvRepositoryURL)
	}
	if strings.TrimSpace(cfg.OAuth.ClientID) == "" || strings.TrimSpace(cfg.OAuth.ClientSecret) == "" {
		return fmt.Errorf("oauth client credentials (or %s/%s) are required", EnvClientToken, EnvClientSecret)
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.OAuth.Site == "" {
		cfg.OAuth.Site = "https://bitbucket.org"
	}
	if cfg.Repository.APIBase == "" {
		cfg.Repository.APIBase = "https://api.bitbucket.org"
	}
	return nil
}
