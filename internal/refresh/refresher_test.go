package refresh

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-sessiond/sessiond/internal/core"
	"github.com/go-sessiond/sessiond/internal/metrics"
	"github.com/go-sessiond/sessiond/internal/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider counts refresh calls and replays scripted outcomes.
type fakeProvider struct {
	mu    sync.Mutex
	calls int64
	delay time.Duration
	grant *core.Grant
	err   error
}

func (p *fakeProvider) Refresh(ctx context.Context, refreshToken string) (*core.Grant, error) {
	atomic.AddInt64(&p.calls, 1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return p.grant, nil
}

func (p *fakeProvider) Logout(ctx context.Context, idTokenHint string) {}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) callCount() int64 { return atomic.LoadInt64(&p.calls) }

func newTestRefresher(p core.Provider, minInterval time.Duration) *Refresher {
	v := token.NewValidator(60*time.Second, 24*time.Hour, 3)
	tr := NewTracker(minInterval)
	return NewRefresher(p, tr, v, metrics.NewNoopMetrics(), 3)
}

func liveToken() *token.Token {
	return &token.Token{
		UserID:       "u1",
		AccessToken:  "at-old",
		RefreshToken: "rt-old",
		IDToken:      "idt-old",
		ExpiresAt:    time.Now().Add(30 * time.Second).Unix(),
	}
}

func TestRefresh_Success(t *testing.T) {
	p := &fakeProvider{grant: &core.Grant{
		AccessToken:  "at-new",
		RefreshToken: "rt-new",
		IDToken:      "idt-new",
		ExpiresIn:    300,
	}}
	r := newTestRefresher(p, 0)

	tok, err := r.Refresh(context.Background(), liveToken())
	require.NoError(t, err)
	require.NotNil(t, tok)

	assert.Equal(t, "u1", tok.UserID)
	assert.Equal(t, "at-new", tok.AccessToken)
	assert.Equal(t, "rt-new", tok.RefreshToken)
	assert.Equal(t, "idt-new", tok.IDToken)
	assert.Zero(t, tok.RefreshAttempts)
	assert.Empty(t, tok.Error)
	assert.Greater(t, tok.ExpiresAt, time.Now().Unix())
	assert.NotZero(t, tok.LastRefreshAt)
}

func TestRefresh_KeepsTokensProviderDidNotRotate(t *testing.T) {
	p := &fakeProvider{grant: &core.Grant{AccessToken: "at-new", ExpiresIn: 300}}
	r := newTestRefresher(p, 0)

	tok, err := r.Refresh(context.Background(), liveToken())
	require.NoError(t, err)
	assert.Equal(t, "rt-old", tok.RefreshToken)
	assert.Equal(t, "idt-old", tok.IDToken)
}

func TestRefresh_GuardRejections(t *testing.T) {
	old := time.Now().Add(-48 * time.Hour).Unix()

	tests := []struct {
		name string
		tok  *token.Token
	}{
		{"marked for signout", &token.Token{UserID: "u1", RefreshToken: "rt", ShouldSignOut: true}},
		{"no user id", &token.Token{RefreshToken: "rt"}},
		{"too old", &token.Token{UserID: "u1", RefreshToken: "rt", ExpiresAt: old}},
		{"no refresh token", &token.Token{UserID: "u1", ExpiresAt: time.Now().Unix()}},
		{"attempts exhausted", &token.Token{
			UserID: "u1", RefreshToken: "rt",
			Error: token.RefreshError, RefreshAttempts: 3,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{grant: &core.Grant{AccessToken: "at", ExpiresIn: 300}}
			r := newTestRefresher(p, 0)

			tok, err := r.Refresh(context.Background(), tt.tok)
			assert.Nil(t, tok)
			assert.ErrorIs(t, err, token.ErrSessionInvalid)
			// Guards must reject before any network traffic.
			assert.Zero(t, p.callCount())
		})
	}
}

func TestRefresh_ExpiredGrantIsTerminal(t *testing.T) {
	p := &fakeProvider{err: token.ErrExpiredGrant}
	r := newTestRefresher(p, 0)

	tok, err := r.Refresh(context.Background(), liveToken())
	assert.Nil(t, tok)
	assert.ErrorIs(t, err, token.ErrSessionInvalid)
	assert.Equal(t, int64(1), p.callCount())
}

func TestRefresh_RetryableFailureAnnotates(t *testing.T) {
	p := &fakeProvider{err: token.ErrProviderConnection}
	r := newTestRefresher(p, 0)

	orig := liveToken()
	tok, err := r.Refresh(context.Background(), orig)
	require.NoError(t, err)
	require.NotNil(t, tok)

	assert.Equal(t, token.RefreshError, tok.Error)
	assert.Equal(t, 1, tok.RefreshAttempts)
	assert.False(t, tok.ShouldSignOut)
	// The original credentials survive for the retry.
	assert.Equal(t, orig.AccessToken, tok.AccessToken)
	assert.Equal(t, orig.RefreshToken, tok.RefreshToken)
	// The input snapshot is never mutated.
	assert.Zero(t, orig.RefreshAttempts)
	assert.Empty(t, orig.Error)
}

func TestRefresh_TransientFailuresExhaustBudget(t *testing.T) {
	p := &fakeProvider{err: token.ErrProviderConnection}
	r := newTestRefresher(p, 0)
	ctx := context.Background()

	tok := liveToken()
	var err error

	// Attempts 1 and 2 annotate and hand the token back.
	for i := 1; i <= 2; i++ {
		tok, err = r.Refresh(ctx, tok)
		require.NoError(t, err)
		require.NotNil(t, tok)
		assert.Equal(t, i, tok.RefreshAttempts)
	}

	// Attempt 3 hits the budget: terminal, no token.
	tok, err = r.Refresh(ctx, tok)
	assert.Nil(t, tok)
	assert.ErrorIs(t, err, token.ErrSessionInvalid)
	assert.Equal(t, int64(3), p.callCount())
}

func TestRefresh_ConcurrentCallsShareOneProviderCall(t *testing.T) {
	p := &fakeProvider{
		delay: 50 * time.Millisecond,
		grant: &core.Grant{AccessToken: "at-new", RefreshToken: "rt-new", ExpiresIn: 300},
	}
	r := newTestRefresher(p, 2*time.Second)
	ctx := context.Background()

	const n = 10
	results := make([]*token.Token, n)
	errs := make([]error, n)
	var wg sync.WaitGroup

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.Refresh(ctx, liveToken())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), p.callCount())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		assert.Equal(t, "at-new", results[i].AccessToken)
	}
}

// panickingProvider blocks until released, then panics mid-refresh.
type panickingProvider struct {
	entered chan struct{}
	release chan struct{}
}

func (p *panickingProvider) Refresh(ctx context.Context, refreshToken string) (*core.Grant, error) {
	close(p.entered)
	<-p.release
	panic("provider blew up")
}

func (p *panickingProvider) Logout(ctx context.Context, idTokenHint string) {}

func (p *panickingProvider) Name() string { return "panicking" }

func TestRefresh_JoinedCallerSeesErrorWhenOwnerPanics(t *testing.T) {
	p := &panickingProvider{entered: make(chan struct{}), release: make(chan struct{})}
	r := newTestRefresher(p, 2*time.Second)
	ctx := context.Background()

	var recovered any
	ownerDone := make(chan struct{})
	go func() {
		defer close(ownerDone)
		defer func() { recovered = recover() }()
		_, _ = r.Refresh(ctx, liveToken())
	}()
	<-p.entered

	var tok *token.Token
	var err error
	joinedDone := make(chan struct{})
	go func() {
		defer close(joinedDone)
		tok, err = r.Refresh(ctx, liveToken())
	}()

	time.Sleep(20 * time.Millisecond)
	close(p.release)
	<-ownerDone
	<-joinedDone

	assert.NotNil(t, recovered)
	// The handle must never settle as (nil, nil); a joined caller with no
	// token needs an error it can act on.
	assert.Nil(t, tok)
	require.ErrorIs(t, err, token.ErrSessionInvalid)
}

func TestRefresh_BurstAfterSettleJoinsResult(t *testing.T) {
	p := &fakeProvider{grant: &core.Grant{AccessToken: "at-new", RefreshToken: "rt-new", ExpiresIn: 300}}
	r := newTestRefresher(p, 2*time.Second)
	ctx := context.Background()

	first, err := r.Refresh(ctx, liveToken())
	require.NoError(t, err)

	// Within the interval the settled entry still answers; no second call.
	second, err := r.Refresh(ctx, liveToken())
	require.NoError(t, err)

	assert.Equal(t, int64(1), p.callCount())
	assert.Same(t, first, second)
}

func TestRefresh_DifferentUsersRefreshIndependently(t *testing.T) {
	p := &fakeProvider{grant: &core.Grant{AccessToken: "at-new", ExpiresIn: 300}}
	r := newTestRefresher(p, 2*time.Second)
	ctx := context.Background()

	t1 := liveToken()
	t2 := liveToken()
	t2.UserID = "u2"

	_, err := r.Refresh(ctx, t1)
	require.NoError(t, err)
	_, err = r.Refresh(ctx, t2)
	require.NoError(t, err)

	assert.Equal(t, int64(2), p.callCount())
}
