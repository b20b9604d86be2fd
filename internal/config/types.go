package config

// Config is the full service configuration.
//
// It can be loaded from a YAML or JSON file; environment variables override
// the secret/endpoint fields afterwards (see ApplyEnv), so a Heroku-style
// deployment can run without any config file at all.
//
// All durations are Go duration strings (e.g. "500ms", "5s", "1m").
type Config struct {
	Server     ServerConfig   `json:"server"`
	Repository RepoConfig     `json:"repository"`
	OAuth      OAuthConfig    `json:"oauth"`
	Pipeline   PipelineConfig `json:"pipeline"`
	Push       PushConfig     `json:"push,omitempty"`
	Telegram   TelegramConfig `json:"telegram,omitempty"`
	Logging    LoggingConfig  `json:"logging"`
	Storage    *StorageConfig `json:"storage,omitempty"`
}

type ServerConfig struct {
	Port int `json:"port,omitempty"`

	// AllowedOrigins is the CORS allow-list for the comment endpoint.
	AllowedOrigins []string `json:"allowed_origins,omitempty"`

	// StaticDir, when set, is served at "/" next to the comment endpoint.
	StaticDir string `json:"static_dir,omitempty"`

	// CaptchaSecret enables reCAPTCHA checking when non-empty.
	CaptchaSecret string `json:"captcha_secret,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
}

type RepoConfig struct {
	// URL is the repository identifier in "workspace/slug" form.
	URL string `json:"url"`
	// APIBase defaults to "https://api.bitbucket.org".
	APIBase string `json:"api_base,omitempty"`
	// MainBranch is the pull-request destination, default "main".
	MainBranch string `json:"main_branch,omitempty"`
}

type OAuthConfig struct {
	// Site is the OAuth host, default "https://bitbucket.org".
	Site         string `json:"site,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	Timeout      string `json:"timeout,omitempty"`
}

// PipelineConfig controls the dispatcher pool and the retry queues.
type PipelineConfig struct {
	Workers   int `json:"workers,omitempty"`
	QueueSize int `json:"queue_size,omitempty"`

	// RetryCeiling is the maximum redelivery attempts before a comment is
	// routed to the terminal-failure topic. Default 10.
	RetryCeiling int `json:"retry_ceiling,omitempty"`

	// Drain intervals per retry queue. Storage retries drain faster than
	// pull-request retries by default ("5s" / "15s").
	StoreDrainEvery       string `json:"store_drain_every,omitempty"`
	PullRequestDrainEvery string `json:"pullrequest_drain_every,omitempty"`

	// RequestTimeout bounds each outbound backend call.
	RequestTimeout string `json:"request_timeout,omitempty"`
}

// PushConfig configures the Pushover-style notification channel.
// The channel is disabled when token or user is empty.
type PushConfig struct {
	Token   string `json:"token,omitempty"`
	User    string `json:"user,omitempty"`
	APIBase string `json:"api_base,omitempty"`
	// RatePerSec throttles outbound notifications. Default 1.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// TelegramConfig configures the optional Telegram operator channel.
// Disabled when token or chat_id is empty/zero.
type TelegramConfig struct {
	Token  string `json:"token,omitempty"`
	ChatID int64  `json:"chat_id,omitempty"`
}

type LoggingConfig struct {
	Level   string            `json:"level,omitempty"`
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file,omitempty"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StorageConfig controls the optional audit journal.
//
// Example:
//
//	"storage": { "path": "./commentrelay.db" }
type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}
