// Package credential mints bounded-lifetime service account tokens for the
// Jenkins controller via the Kubernetes TokenRequest API.
//
// Reuse policy: a previously issued credential for the same subject is
// returned as long as it keeps more than reuseFraction of its granted
// lifetime; otherwise a fresh token is requested. Bound tokens are
// independent JWTs, so reissuing never invalidates a token a running
// controller already holds. Materialization for the same subject is
// serialized by a per-subject lock so concurrent runs cannot race.
package credential

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	authenticationv1 "k8s.io/api/authentication/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/utils/ptr"
)

// reuseFraction is the minimum remaining share of the granted lifetime for
// a cached credential to be reused instead of reissued.
const reuseFraction = 0.2

// Materializer issues and caches service account tokens.
type Materializer struct {
	Client kubernetes.Interface

	// Now is the clock, overridable in tests. Nil means time.Now.
	Now func() time.Time

	mu    sync.Mutex
	locks map[Subject]*sync.Mutex
	cache map[Subject]*Credential
}

// NewMaterializer returns a materializer backed by the given client.
func NewMaterializer(client kubernetes.Interface) *Materializer {
	return &Materializer{
		Client: client,
		locks:  make(map[Subject]*sync.Mutex),
		cache:  make(map[Subject]*Credential),
	}
}

func (m *Materializer) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Materializer) subjectLock(subject Subject) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[subject]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[subject] = lock
	}
	return lock
}

// Materialize returns a credential for the service account, reusing a cached
// unexpired one when possible. The TTL is a lower bound request; the
// returned credential carries the expiry the API server actually granted.
func (m *Materializer) Materialize(ctx context.Context, namespace, serviceAccount string, ttl time.Duration) (*Credential, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("credential TTL must be positive, got %s", ttl)
	}

	subject := Subject{Namespace: namespace, ServiceAccount: serviceAccount}

	lock := m.subjectLock(subject)
	lock.Lock()
	defer lock.Unlock()

	now := m.now()

	m.mu.Lock()
	cached := m.cache[subject]
	m.mu.Unlock()

	if cached != nil && cached.Fresh(now, reuseFraction) {
		slog.Debug("reusing cached credential",
			slog.String("subject", subject.String()),
			slog.Time("expiresAt", cached.ExpiresAt),
		)
		return cached, nil
	}

	cred, err := m.issue(ctx, subject, ttl, now)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.cache[subject] = cred
	m.mu.Unlock()

	return cred, nil
}

func (m *Materializer) issue(ctx context.Context, subject Subject, ttl time.Duration, now time.Time) (*Credential, error) {
	seconds := int64(math.Ceil(ttl.Seconds()))

	req := &authenticationv1.TokenRequest{
		Spec: authenticationv1.TokenRequestSpec{
			ExpirationSeconds: ptr.To(seconds),
		},
	}

	resp, err := m.Client.CoreV1().
		ServiceAccounts(subject.Namespace).
		CreateToken(ctx, subject.ServiceAccount, req, metav1.CreateOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to issue token for %s: %w", subject, err)
	}
	if resp.Status.Token == "" {
		return nil, fmt.Errorf("token request for %s returned an empty token", subject)
	}

	// The API server may round the TTL up or clamp it; trust the timestamp
	// it returned, never the requested value.
	expiresAt := resp.Status.ExpirationTimestamp.Time

	slog.Info("issued credential",
		slog.String("subject", subject.String()),
		slog.Time("expiresAt", expiresAt),
	)

	return &Credential{
		ID:        CredentialID(subject.Namespace, subject.ServiceAccount),
		Token:     Secret(resp.Status.Token),
		IssuedAt:  now,
		ExpiresAt: expiresAt,
		Subject:   subject,
	}, nil
}
