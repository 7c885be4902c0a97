package recaptcha

import (
	"context"
	"sync"

	"github.com/kwhite/recaptcha-classic/logger"
)

// Config carries the account keys a Solver submits on behalf of its caller.
type Config struct {
	PublicKey  string
	PrivateKey string
}

// Solver adapts the blocking protocol client to the callback surface an
// embedding UI consumes: each call runs in the background and reports its
// outcome through a callback that fires exactly once. Fetch and verification
// failures collapse to false; the typed error is logged through the context
// logger, never surfaced to the callback.
type Solver struct {
	client *Client
	cfg    Config

	mu       sync.Mutex
	inflight bool
	session  *ChallengeSession
}

func NewSolver(client *Client, cfg Config) *Solver {
	return &Solver{client: client, cfg: cfg}
}

// Session returns the challenge produced by the most recent successful
// ShowChallenge, or nil. It is cleared after every verification.
func (s *Solver) Session() *ChallengeSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// ShowChallenge fetches a new challenge in the background. cb receives true
// when a challenge is ready and false on any failure. Validation problems
// and overlapping calls are returned synchronously and cb never fires.
func (s *Solver) ShowChallenge(ctx context.Context, cb func(shown bool)) error {
	if s.cfg.PublicKey == "" {
		return &ValidationError{Field: "publicKey", Reason: "cannot be empty"}
	}
	if err := s.begin(); err != nil {
		return err
	}

	go func() {
		defer s.end()

		session, err := s.client.FetchChallenge(ctx, s.cfg.PublicKey)
		if err != nil {
			logger.FromContext(ctx).Error("challenge fetch failed", "error", err)
			s.setSession(nil)
			cb(false)
			return
		}

		s.setSession(session)
		cb(true)
	}()

	return nil
}

// VerifyAnswer submits answer against the current challenge in the
// background. cb receives true only when the server accepted the answer;
// every failure mode collapses to false. The current challenge is consumed
// whatever the outcome, so the next verification needs a new ShowChallenge.
func (s *Solver) VerifyAnswer(ctx context.Context, answer string, cb func(success bool)) error {
	if s.cfg.PrivateKey == "" {
		return &ValidationError{Field: "privateKey", Reason: "cannot be empty"}
	}
	if answer == "" {
		return &ValidationError{Field: "answer", Reason: "cannot be empty"}
	}
	if err := s.begin(); err != nil {
		return err
	}

	go func() {
		defer s.end()

		ok, err := s.client.VerifyAnswer(ctx, s.cfg.PrivateKey, answer, s.Session())
		if err != nil {
			logger.FromContext(ctx).Error("answer verification failed", "error", err)
		}

		s.setSession(nil)
		cb(err == nil && ok)
	}()

	return nil
}

func (s *Solver) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight {
		return ErrBusy
	}
	s.inflight = true
	return nil
}

func (s *Solver) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight = false
}

func (s *Solver) setSession(session *ChallengeSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
}
