package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"commentrelay/internal/comment"
	"commentrelay/internal/dispatch"
	"commentrelay/pkg/logx"
	"commentrelay/pkg/textfilter"
)

const (
	commentPath    = "/blogcomments/"
	successMessage = "Your comment has been received and will appear shortly"
)

// Publisher is the slice of the dispatcher the ingress needs.
type Publisher interface {
	Publish(topic string, c *comment.Comment)
}

type Config struct {
	Port           int
	AllowedOrigins []string
	StaticDir      string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

type Server struct {
	cfg     Config
	pub     Publisher
	captcha *textfilter.CaptchaVerifier
	log     logx.Logger

	srv *http.Server
}

func New(cfg Config, pub Publisher, captcha *textfilter.CaptchaVerifier, log logx.Logger) *Server {
	if cfg.Port <= 0 {
		cfg.Port = 5000
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	s := &Server{cfg: cfg, pub: pub, captcha: captcha, log: log}

	mux := http.NewServeMux()
	mux.Handle(commentPath, s.cors(http.HandlerFunc(s.handleComment)))
	if cfg.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))
	}

	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Start begins serving in the background and returns once the listener is
// bound, so a bad port fails startup instead of surfacing later.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.srv.Addr, err)
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped", logx.Err(err))
		}
	}()
	s.log.Info("server started", logx.Int("port", s.cfg.Port))
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// cors enforces the origin allow-list on the comment endpoint. Non-POST
// requests (including preflight) never reach the comment handler.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "POST")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Requested-With")
			w.Header().Set("Vary", "Origin")
		}
		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusNoContent)
		case http.MethodPost:
			next.ServeHTTP(w, r)
		default:
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte("Info"))
		}
	})
}

func (s *Server) originAllowed(origin string) bool {
	u := strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://")
	u = strings.TrimSuffix(u, "/")
	for _, allowed := range s.cfg.AllowedOrigins {
		if strings.EqualFold(u, allowed) {
			return true
		}
	}
	return false
}

// submission is the ingress wire shape: a comment plus the captcha response,
// which never travels past validation.
type submission struct {
	comment.Comment
	RChallenge string `json:"rChallenge,omitempty"`
	RResponse  string `json:"rResponse,omitempty"`
}

func (s *Server) handleComment(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		writeResult(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
		return
	}

	var sub submission
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&sub); err != nil {
		writeResult(w, "Could not read your comment", http.StatusBadRequest)
		return
	}

	sub.Comment.Parameters = requestParameters(r)

	if problems := s.validate(r.Context(), &sub); len(problems) > 0 {
		var b strings.Builder
		b.WriteString("Sorry submitting your comment didn't work, check this:\n")
		for _, p := range problems {
			b.WriteString(textfilter.Escape(p))
			b.WriteString("\n")
		}
		writeResult(w, b.String(), http.StatusBadRequest)
		return
	}

	c := sub.Comment
	s.pub.Publish(dispatch.TopicNewComment, &c)
	s.log.Info("comment accepted", logx.String("parent", c.ParentID))
	writeResult(w, successMessage, http.StatusOK)
}

// requestParameters captures client IP and headers as opaque metadata.
// Duplicate headers overwrite each other, which is fine for this purpose.
func requestParameters(r *http.Request) map[string]string {
	params := make(map[string]string, len(r.Header)+1)
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	params["ClientIP"] = host
	for k, vals := range r.Header {
		if len(vals) > 0 {
			params[k] = vals[len(vals)-1]
		}
	}
	return params
}

// resultMessage is the envelope sent back to the browser.
type resultMessage struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func writeResult(w http.ResponseWriter, message string, status int) {
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resultMessage{Message: message, Status: status})
}
