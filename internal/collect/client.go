package collect

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"

	"github.com/roivaz/prcohort/internal/logging"
)

const (
	defaultTimeout    = 30 * time.Second
	initialRetryDelay = 2 * time.Second
	maxRetryDelay     = 2 * time.Minute
)

// NewGitHubClient returns an authenticated client, or an anonymous one when token
// is empty.
func NewGitHubClient(token string, timeout time.Duration) *github.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if token == "" {
		return github.NewClient(&http.Client{Timeout: timeout})
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = timeout
	return github.NewClient(tc)
}

// TokenPool hands out one client per configured token and moves to the next one
// when the current token runs out of quota.
type TokenPool struct {
	mu      sync.Mutex
	clients []*github.Client
	current int
}

// NewTokenPool builds a pool from tokens. With no tokens the pool holds a single
// anonymous client.
func NewTokenPool(tokens []string, timeout time.Duration) *TokenPool {
	if len(tokens) == 0 {
		return newTokenPool(NewGitHubClient("", timeout))
	}
	clients := make([]*github.Client, 0, len(tokens))
	for _, tok := range tokens {
		clients = append(clients, NewGitHubClient(tok, timeout))
	}
	return newTokenPool(clients...)
}

func newTokenPool(clients ...*github.Client) *TokenPool {
	return &TokenPool{clients: clients}
}

// Client returns the client for the current token.
func (p *TokenPool) Client() *github.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clients[p.current]
}

// Rotate switches to the next token and returns its position.
func (p *TokenPool) Rotate() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = (p.current + 1) % len(p.clients)
	return p.current
}

// Size is the number of tokens in the pool.
func (p *TokenPool) Size() int { return len(p.clients) }

func isRateLimited(err error) bool {
	var rl *github.RateLimitError
	var abuse *github.AbuseRateLimitError
	return errors.As(err, &rl) || errors.As(err, &abuse)
}

// call runs fn against the pool's current client. Rate limit failures rotate the
// token and retry with exponential backoff; other errors are returned as is.
func call(ctx context.Context, pool *TokenPool, attempts uint, delay time.Duration, log logging.Logger, operation string, fn func(*github.Client) error) error {
	return retry.Do(
		func() error { return fn(pool.Client()) },
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.DelayType(retry.BackOffDelay),
		retry.Delay(delay),
		retry.MaxDelay(maxRetryDelay),
		retry.RetryIf(isRateLimited),
		retry.OnRetry(func(n uint, err error) {
			next := pool.Rotate()
			log.Warn("github rate limit, switching token", "operation", operation, "attempt", n+1, "maxAttempts", attempts, "token", next, "error", err.Error())
		}),
		retry.LastErrorOnly(true),
	)
}
