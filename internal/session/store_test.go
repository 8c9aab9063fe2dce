package session

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"session-lifecycle/backend/internal/security"
	"session-lifecycle/backend/internal/session/domain"
)

type memSessionRepo struct {
	mu   sync.Mutex
	byID map[string]*domain.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{byID: make(map[string]*domain.Session)}
}

func (r *memSessionRepo) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byID[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (r *memSessionRepo) Create(ctx context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.byID[s.ID] = &cp
	return nil
}

func (r *memSessionRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	return nil
}

func (r *memSessionRepo) DeleteAllForPrincipal(ctx context.Context, principalID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.byID {
		if s.PrincipalID == principalID {
			delete(r.byID, id)
		}
	}
	return nil
}

func (r *memSessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.byID {
		if s.ExpiresAt.Before(now) {
			delete(r.byID, id)
			n++
		}
	}
	return n, nil
}

func (r *memSessionRepo) live(principalID string, now time.Time) []*domain.Session {
	var out []*domain.Session
	for _, s := range r.byID {
		if s.PrincipalID == principalID && s.ExpiresAt.After(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out
}

func (r *memSessionRepo) CountLive(ctx context.Context, principalID string, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live(principalID, now)), nil
}

func (r *memSessionRepo) OldestLive(ctx context.Context, principalID string, now time.Time) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	live := r.live(principalID, now)
	if len(live) == 0 {
		return nil, nil
	}
	sort.Slice(live, func(i, j int) bool {
		if !live[i].CreatedAt.Equal(live[j].CreatedAt) {
			return live[i].CreatedAt.Before(live[j].CreatedAt)
		}
		return live[i].ID < live[j].ID
	})
	return live[0], nil
}

func (r *memSessionRepo) ListLive(ctx context.Context, principalID string, now time.Time) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	live := r.live(principalID, now)
	sort.Slice(live, func(i, j int) bool {
		if !live[i].CreatedAt.Equal(live[j].CreatedAt) {
			return live[i].CreatedAt.After(live[j].CreatedAt)
		}
		return live[i].ID > live[j].ID
	})
	return live, nil
}

func (r *memSessionRepo) UpdateLastSeen(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byID[id]; ok {
		s.LastSeenAt = &at
	}
	return nil
}

func (r *memSessionRepo) UpdateRefreshSecretHash(ctx context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byID[id]; ok {
		s.RefreshSecretHash = hash
	}
	return nil
}

// steppingClock hands out a strictly increasing timestamp per call so created
// sessions have distinct creation times.
type steppingClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *steppingClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestStore(repo *memSessionRepo, limit int) *Store {
	st := NewStore(repo, nil, limit, 30*24*time.Hour)
	clock := &steppingClock{t: time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)}
	st.now = clock.now
	return st
}

func TestCreateSession_BoundedConcurrency(t *testing.T) {
	repo := newMemSessionRepo()
	st := newTestStore(repo, 2)
	ctx := context.Background()

	s1, err := st.CreateSession(ctx, "p1", "secret-1", "laptop")
	if err != nil {
		t.Fatalf("CreateSession 1: %v", err)
	}
	s2, err := st.CreateSession(ctx, "p1", "secret-2", "phone")
	if err != nil {
		t.Fatalf("CreateSession 2: %v", err)
	}
	s3, err := st.CreateSession(ctx, "p1", "secret-3", "tablet")
	if err != nil {
		t.Fatalf("CreateSession 3: %v", err)
	}

	live, err := st.ListLive(ctx, "p1")
	if err != nil {
		t.Fatalf("ListLive: %v", err)
	}
	if len(live) != 2 {
		t.Fatalf("live sessions = %d, want 2", len(live))
	}
	// Newest first: #3 then #2; #1 evicted.
	if live[0].ID != s3.ID || live[1].ID != s2.ID {
		t.Errorf("survivors = [%s %s], want [%s %s]", live[0].ID, live[1].ID, s3.ID, s2.ID)
	}
	if got, _ := repo.GetByID(ctx, s1.ID); got != nil {
		t.Error("oldest session survived eviction")
	}
}

func TestCreateSession_EvictionTieBreak(t *testing.T) {
	repo := newMemSessionRepo()
	st := NewStore(repo, nil, 2, 30*24*time.Hour)
	fixed := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return fixed }
	ctx := context.Background()

	a, err := st.CreateSession(ctx, "p1", "secret-a", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	b, err := st.CreateSession(ctx, "p1", "secret-b", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := st.CreateSession(ctx, "p1", "secret-c", ""); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	evicted := a.ID
	if b.ID < a.ID {
		evicted = b.ID
	}
	if got, _ := repo.GetByID(ctx, evicted); got != nil {
		t.Errorf("session %s with smallest id should have been evicted", evicted)
	}
}

func TestCreateSession_DifferentPrincipalsIndependent(t *testing.T) {
	repo := newMemSessionRepo()
	st := newTestStore(repo, 2)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := st.CreateSession(ctx, "p1", "s", ""); err != nil {
			t.Fatalf("CreateSession p1: %v", err)
		}
	}
	if _, err := st.CreateSession(ctx, "p2", "s", ""); err != nil {
		t.Fatalf("CreateSession p2: %v", err)
	}
	if live, _ := st.ListLive(ctx, "p2"); len(live) != 1 {
		t.Errorf("p2 live sessions = %d, want 1", len(live))
	}
}

func TestCreateSession_ConcurrentNeverExceedsLimit(t *testing.T) {
	repo := newMemSessionRepo()
	st := newTestStore(repo, 2)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := st.CreateSession(ctx, "p1", "secret", ""); err != nil {
				t.Errorf("CreateSession: %v", err)
			}
		}()
	}
	wg.Wait()

	live, err := st.ListLive(ctx, "p1")
	if err != nil {
		t.Fatalf("ListLive: %v", err)
	}
	if len(live) > 2 {
		t.Errorf("live sessions = %d, want <= 2", len(live))
	}
}

func TestCreateSession_SecretStoredHashed(t *testing.T) {
	repo := newMemSessionRepo()
	st := newTestStore(repo, 2)
	sess, err := st.CreateSession(context.Background(), "p1", "raw-secret", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.RefreshSecretHash == "raw-secret" {
		t.Error("refresh secret stored in plaintext")
	}
	if !security.RefreshSecretEqual("raw-secret", sess.RefreshSecretHash) {
		t.Error("stored hash does not match secret")
	}
}

func TestFindBySecret(t *testing.T) {
	repo := newMemSessionRepo()
	st := newTestStore(repo, 2)
	ctx := context.Background()

	secret, err := security.GenerateRefreshSecret()
	if err != nil {
		t.Fatalf("GenerateRefreshSecret: %v", err)
	}
	sess, err := st.CreateSession(ctx, "p1", secret, "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	found, err := st.FindBySecret(ctx, security.EncodeRefreshSecret(sess.ID, secret))
	if err != nil {
		t.Fatalf("FindBySecret: %v", err)
	}
	if found == nil || found.ID != sess.ID {
		t.Fatalf("FindBySecret = %v, want session %s", found, sess.ID)
	}

	// Wrong secret, unknown session id, and malformed input are all
	// indistinguishable misses.
	cases := map[string]string{
		"wrong secret":  security.EncodeRefreshSecret(sess.ID, "wrong-secret"),
		"unknown id":    security.EncodeRefreshSecret("no-such-session", secret),
		"malformed":     "garbage",
		"empty":         "",
		"empty secret":  sess.ID + ".",
		"empty session": "." + secret,
	}
	for name, in := range cases {
		got, err := st.FindBySecret(ctx, in)
		if err != nil {
			t.Errorf("%s: err = %v", name, err)
		}
		if got != nil {
			t.Errorf("%s: found session %s, want nil", name, got.ID)
		}
	}
}

func TestTouch_BestEffort(t *testing.T) {
	repo := newMemSessionRepo()
	st := newTestStore(repo, 2)
	ctx := context.Background()

	sess, err := st.CreateSession(ctx, "p1", "secret", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	st.Touch(ctx, sess.ID)
	got, _ := repo.GetByID(ctx, sess.ID)
	if got.LastSeenAt == nil {
		t.Error("LastSeenAt not set after Touch")
	}
	// Touching a deleted session must not panic or fail the flow.
	st.Touch(ctx, "no-such-session")
}

func TestDelete_Idempotent(t *testing.T) {
	repo := newMemSessionRepo()
	st := newTestStore(repo, 2)
	ctx := context.Background()

	sess, err := st.CreateSession(ctx, "p1", "secret", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := st.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := st.Delete(ctx, sess.ID); err != nil {
		t.Errorf("second Delete: %v", err)
	}
	if err := st.DeleteAllForPrincipal(ctx, "p1"); err != nil {
		t.Errorf("DeleteAllForPrincipal on empty: %v", err)
	}
}

func TestRotate_InvalidatesOldSecret(t *testing.T) {
	repo := newMemSessionRepo()
	st := newTestStore(repo, 2)
	ctx := context.Background()

	sess, err := st.CreateSession(ctx, "p1", "old-secret", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := st.Rotate(ctx, sess.ID, "new-secret"); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if got, _ := st.FindBySecret(ctx, security.EncodeRefreshSecret(sess.ID, "old-secret")); got != nil {
		t.Error("old secret still resolves after rotation")
	}
	if got, _ := st.FindBySecret(ctx, security.EncodeRefreshSecret(sess.ID, "new-secret")); got == nil {
		t.Error("new secret does not resolve after rotation")
	}
}

func TestCreateSession_PrincipalRequired(t *testing.T) {
	st := newTestStore(newMemSessionRepo(), 2)
	if _, err := st.CreateSession(context.Background(), " ", "secret", ""); err != ErrPrincipalRequired {
		t.Errorf("err = %v, want ErrPrincipalRequired", err)
	}
}
