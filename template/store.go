package template

import (
	_ "embed"
	"html/template"
	"net/http"
	"time"
)

//go:embed html/challenge.html
var challengeHTML string

//go:embed html/verified.html
var verifiedHTML string

// ChallengePageData feeds the challenge page: the rendered image, the opaque
// reference the verify form posts back, and an optional outcome banner.
type ChallengePageData struct {
	ImageSrc     string
	ChallengeRef string
	CallbackURL  string
	Notice       string
}

// VerifiedPageData feeds the page shown to visitors whose session cookie is
// still valid.
type VerifiedPageData struct {
	ExpiresAt time.Time
}

type Store struct {
	challengeTemplate *template.Template
	verifiedTemplate  *template.Template
}

// NewStore compiles the embedded templates into a *template.Template
func NewStore() (*Store, error) {
	challenge, err := template.New("challenge").Parse(challengeHTML)
	if err != nil {
		return nil, err
	}

	verified, err := template.New("verified").Parse(verifiedHTML)
	if err != nil {
		return nil, err
	}

	return &Store{
		challengeTemplate: challenge,
		verifiedTemplate:  verified,
	}, nil
}

// RenderChallenge renders the challenge page into an http.ResponseWriter
func (s *Store) RenderChallenge(w http.ResponseWriter, data ChallengePageData) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return s.challengeTemplate.Execute(w, data)
}

// RenderVerified renders the already-verified page into an http.ResponseWriter
func (s *Store) RenderVerified(w http.ResponseWriter, data VerifiedPageData) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return s.verifiedTemplate.Execute(w, data)
}
