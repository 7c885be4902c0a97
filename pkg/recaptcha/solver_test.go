package recaptcha

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSolver(t *testing.T) (*fakeAPI, *Solver) {
	t.Helper()
	api, client := newFakeAPI(t)
	solver := NewSolver(client, Config{PublicKey: "pubkey", PrivateKey: "privkey"})
	return api, solver
}

func waitForCallback(t *testing.T, ch <-chan bool) bool {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("callback never fired")
		return false
	}
}

func TestShowChallenge(t *testing.T) {
	_, solver := newTestSolver(t)

	var calls atomic.Int32
	done := make(chan bool, 1)
	err := solver.ShowChallenge(context.Background(), func(shown bool) {
		calls.Add(1)
		done <- shown
	})
	require.NoError(t, err)

	assert.True(t, waitForCallback(t, done))
	assert.EqualValues(t, 1, calls.Load())

	session := solver.Session()
	require.NotNil(t, session)
	assert.Equal(t, "TOK123", session.ImageToken)
}

func TestShowChallengeFailureCollapsesToFalse(t *testing.T) {
	api, solver := newTestSolver(t)
	api.challengeStatus = http.StatusInternalServerError

	done := make(chan bool, 1)
	err := solver.ShowChallenge(context.Background(), func(shown bool) { done <- shown })
	require.NoError(t, err)

	assert.False(t, waitForCallback(t, done))
	assert.Nil(t, solver.Session())
}

func TestShowChallengeValidation(t *testing.T) {
	_, client := newFakeAPI(t)
	solver := NewSolver(client, Config{PrivateKey: "privkey"})

	err := solver.ShowChallenge(context.Background(), func(bool) {
		t.Error("callback must not fire on validation failure")
	})

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestVerifyAnswerCycle(t *testing.T) {
	_, solver := newTestSolver(t)

	shown := make(chan bool, 1)
	require.NoError(t, solver.ShowChallenge(context.Background(), func(ok bool) { shown <- ok }))
	require.True(t, waitForCallback(t, shown))

	verified := make(chan bool, 1)
	require.NoError(t, solver.VerifyAnswer(context.Background(), "answer", func(ok bool) { verified <- ok }))

	assert.True(t, waitForCallback(t, verified))
	assert.Nil(t, solver.Session(), "verification consumes the challenge")
}

func TestVerifyAnswerWrongCollapsesToFalse(t *testing.T) {
	api, solver := newTestSolver(t)
	api.verifyBody = "false\nincorrect-captcha-sol"

	shown := make(chan bool, 1)
	require.NoError(t, solver.ShowChallenge(context.Background(), func(ok bool) { shown <- ok }))
	require.True(t, waitForCallback(t, shown))

	verified := make(chan bool, 1)
	require.NoError(t, solver.VerifyAnswer(context.Background(), "answer", func(ok bool) { verified <- ok }))

	assert.False(t, waitForCallback(t, verified))
}

func TestVerifyAnswerWithoutChallenge(t *testing.T) {
	_, solver := newTestSolver(t)

	verified := make(chan bool, 1)
	require.NoError(t, solver.VerifyAnswer(context.Background(), "answer", func(ok bool) { verified <- ok }))

	assert.False(t, waitForCallback(t, verified))
}

func TestVerifyAnswerValidationIsSynchronous(t *testing.T) {
	_, solver := newTestSolver(t)

	err := solver.VerifyAnswer(context.Background(), "", func(bool) {
		t.Error("callback must not fire on validation failure")
	})

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestOverlappingCallsRejected(t *testing.T) {
	api, solver := newTestSolver(t)
	api.block = make(chan struct{})

	done := make(chan bool, 1)
	require.NoError(t, solver.ShowChallenge(context.Background(), func(ok bool) { done <- ok }))

	err := solver.ShowChallenge(context.Background(), func(bool) {
		t.Error("overlapping call must not run")
	})
	assert.ErrorIs(t, err, ErrBusy)

	close(api.block)
	assert.True(t, waitForCallback(t, done))
}
