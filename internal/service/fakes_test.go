package service

import (
	"context"
	"sync"
	"time"

	"github.com/storegrid/identity-service/internal/domain"
	"github.com/storegrid/identity-service/internal/repository"
)

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
	seq   int
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*domain.User)}
}

func (r *memUserRepo) add(u *domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.users[u.ID] = &cp
}

func (r *memUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *memUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := r.FindByEmail(ctx, email)
	if err == repository.ErrUserNotFound {
		return false, nil
	}
	return err == nil, err
}

func (r *memUserRepo) UpsertByEmail(ctx context.Context, email string, passwordHash *string) (*domain.User, error) {
	if u, err := r.FindByEmail(ctx, email); err == nil {
		return u, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	u := &domain.User{
		ID:           "user-" + string(rune('a'+r.seq)),
		Email:        email,
		PasswordHash: passwordHash,
	}
	r.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) UpdateProfile(_ context.Context, id, name string, pictureURL *string, emailVerified bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Name = name
	u.PictureURL = pictureURL
	u.IsEmailVerified = emailVerified
	return nil
}

func (r *memUserRepo) SetTwoFactor(_ context.Context, id string, encryptedKey, encryptedRecoveryCode *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.TwoFactorAuthKey = encryptedKey
	u.TwoFactorAuthRecoveryCode = encryptedRecoveryCode
	return nil
}

func (r *memUserRepo) SetRecoveryCode(_ context.Context, id string, encryptedRecoveryCode *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.TwoFactorAuthRecoveryCode = encryptedRecoveryCode
	return nil
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	users    *memUserRepo
}

func newMemSessionRepo(users *memUserRepo) *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*domain.Session), users: users}
}

func (r *memSessionRepo) Create(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *memSessionRepo) FindWithUser(ctx context.Context, id string) (*domain.Session, *domain.User, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return nil, nil, repository.ErrSessionNotFound
	}
	cp := *s
	r.mu.Unlock()
	u, err := r.users.FindByID(ctx, cp.UserID)
	if err == repository.ErrUserNotFound {
		return &cp, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return &cp, u, nil
}

func (r *memSessionRepo) UpdateExpiresAt(_ context.Context, id string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.ExpiresAt = expiresAt
	}
	return nil
}

func (r *memSessionRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *memSessionRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.sessions {
		if !s.ExpiresAt.After(before) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

func (r *memSessionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

type capturingSender struct {
	mu   sync.Mutex
	mail []struct{ To, Subject, HTML string }
	done chan struct{}
}

func newCapturingSender() *capturingSender {
	return &capturingSender{done: make(chan struct{}, 16)}
}

func (s *capturingSender) Send(_ context.Context, to, subject, html string) error {
	s.mu.Lock()
	s.mail = append(s.mail, struct{ To, Subject, HTML string }{to, subject, html})
	s.mu.Unlock()
	s.done <- struct{}{}
	return nil
}

func (s *capturingSender) wait(timeout time.Duration) bool {
	select {
	case <-s.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (s *capturingSender) last() (struct{ To, Subject, HTML string }, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.mail) == 0 {
		return struct{ To, Subject, HTML string }{}, false
	}
	return s.mail[len(s.mail)-1], true
}
