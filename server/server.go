// Package server is the demo gateway: it plays the role of the UI layer
// embedding the protocol client, rendering the challenge image in a form and
// handing out a signed session cookie when the answer verifies.
package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/kwhite/recaptcha-classic/logger"
	"github.com/kwhite/recaptcha-classic/pkg/cache"
	"github.com/kwhite/recaptcha-classic/pkg/imaging"
	"github.com/kwhite/recaptcha-classic/pkg/recaptcha"
	"github.com/kwhite/recaptcha-classic/pkg/token"
	"github.com/kwhite/recaptcha-classic/template"
)

// displayScale matches the legacy widget's presentation size.
const displayScale = 2

const sessionCookie = "captcha-session"

// Captcha is the slice of the protocol client the gateway consumes.
type Captcha interface {
	FetchChallenge(ctx context.Context, publicKey string) (*recaptcha.ChallengeSession, error)
	VerifyAnswer(ctx context.Context, privateKey, answer string, session *recaptcha.ChallengeSession) (bool, error)
}

// pending ties a fetched challenge to the client that owns it. Each pending
// challenge gets its own client because a client only honors the token of
// its most recent fetch.
type pending struct {
	captcha Captcha
	session *recaptcha.ChallengeSession
}

type Server struct {
	logger     *slog.Logger
	templates  *template.Store
	limiter    *RateLimiter
	tokens     token.Service
	newCaptcha func() Captcha
	publicKey  string
	privateKey string
	pending    *cache.Cache[string, pending]
	host       string
	port       int
}

func New(logger *slog.Logger, templates *template.Store, limiter *RateLimiter, tokens token.Service, newCaptcha func() Captcha, publicKey, privateKey, host string, port int, challengeTTL time.Duration) Server {
	return Server{
		logger:     logger,
		templates:  templates,
		limiter:    limiter,
		tokens:     tokens,
		newCaptcha: newCaptcha,
		publicKey:  publicKey,
		privateKey: privateKey,
		pending:    cache.New(cache.WithTTL[string, pending](challengeTTL)),
		host:       host,
		port:       port,
	}
}

func (s *Server) Serve(ctx context.Context) error {
	r := mux.NewRouter()
	r.HandleFunc("/captcha", s.handleChallenge()).Methods(http.MethodGet)
	r.HandleFunc("/captcha/verify", s.handleVerify()).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.Healthz()).Methods(http.MethodGet)
	r.Use(s.LoggerMiddleware)

	handler := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodPost, http.MethodGet, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(r)

	if s.limiter != nil {
		handler = s.limiter.Middleware(handler)
	}

	s.pending.StartJanitor(ctx, time.Minute)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.host, s.port),
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info("context canceled: terminating http server")
		httpServer.Shutdown(context.Background())
	}()

	s.logger.Info("http serving", "addr", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to serve http: %v", err)
	}
	return nil
}

func (s *Server) handleChallenge() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := logger.FromContext(ctx)

		if claims, ok := s.verifiedSession(r); ok {
			log.Debug("visitor already holds a valid session", "sid", claims.SID)
			s.templates.RenderVerified(w, template.VerifiedPageData{ExpiresAt: claims.ExpiresAt.Time})
			return
		}

		captcha := s.newCaptcha()
		session, err := captcha.FetchChallenge(ctx, s.publicKey)
		if err != nil {
			log.Error("failed to fetch captcha challenge", "error", err)
			http.Error(w, "failed to fetch captcha challenge", http.StatusBadGateway)
			return
		}

		src, err := renderImage(session)
		if err != nil {
			log.Error("failed to render challenge image", "error", err)
			http.Error(w, "failed to render challenge image", http.StatusInternalServerError)
			return
		}

		ref := uuid.NewString()
		s.pending.Set(ref, pending{captcha: captcha, session: session})

		pageData := template.ChallengePageData{
			ImageSrc:     src,
			ChallengeRef: ref,
			CallbackURL:  "/captcha/verify",
			Notice:       notice(r.URL.Query().Get("verified")),
		}

		s.templates.RenderChallenge(w, pageData)
	}
}

func (s *Server) handleVerify() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := logger.FromContext(ctx)

		if err := r.ParseForm(); err != nil {
			log.Error("failed to parse form data", "error", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		ref := r.FormValue("challenge")
		answer := r.FormValue("answer")

		entry, ok := s.pending.Take(ref)
		if !ok {
			log.Info("verification against unknown or expired challenge", "ref", ref)
			http.Error(w, "unknown or expired challenge", http.StatusForbidden)
			return
		}

		success, err := entry.captcha.VerifyAnswer(ctx, s.privateKey, answer, entry.session)
		if err != nil {
			// The embedding surface only ever sees a boolean outcome; the
			// typed error stays in the logs.
			log.Error("failed to verify captcha answer", "error", err)
		}

		if !success {
			http.Redirect(w, r, "/captcha?verified=0", http.StatusSeeOther)
			return
		}

		tokenStr, err := s.tokens.Issue(ref)
		if err != nil {
			log.Error("failed to issue session token", "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		s.writeSessionCookie(w, tokenStr)
		http.Redirect(w, r, "/captcha?verified=1", http.StatusSeeOther)
	}
}

func (s *Server) Healthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
}

// verifiedSession checks the session cookie and returns its claims when the
// token is present and still valid.
func (s *Server) verifiedSession(r *http.Request) (*token.Claims, bool) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil || cookie.Value == "" {
		return nil, false
	}

	claims, err := s.tokens.Check(cookie.Value)
	if err != nil {
		return nil, false
	}

	return claims, true
}

func (s *Server) writeSessionCookie(w http.ResponseWriter, tokenStr string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    tokenStr,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// renderImage scales the challenge to display size and inlines it as a PNG
// data URI.
func renderImage(session *recaptcha.ChallengeSession) (string, error) {
	img, _, err := imaging.Decode(session.ImageBytes)
	if err != nil {
		return "", err
	}

	data, err := imaging.EncodePNG(imaging.Scale(img, displayScale))
	if err != nil {
		return "", err
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

func notice(verified string) string {
	switch verified {
	case "1":
		return "Verification succeeded. Here is a fresh challenge."
	case "0":
		return "Verification failed. Please try again."
	default:
		return ""
	}
}
