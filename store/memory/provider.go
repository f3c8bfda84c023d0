package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	adminauth "github.com/mtp-sa/adminauth"
	"github.com/mtp-sa/adminauth/role"
)

// Provider is an in-memory principal store. It implements both
// adminauth.PrincipalProvider and adminauth.AttemptRecorder and is intended
// for tests and local development.
type Provider struct {
	mu       sync.RWMutex
	byID     map[string]adminauth.Principal
	byEmail  map[string]string
	attempts []adminauth.LoginAttempt
}

// NewProvider returns an empty [Provider].
func NewProvider() *Provider {
	return &Provider{
		byID:    make(map[string]adminauth.Principal),
		byEmail: make(map[string]string),
	}
}

// CreatePrincipal adds a principal and returns its generated ID. The email
// is stored and matched byte for byte.
func (p *Provider) CreatePrincipal(email, name string, r role.Role, passwordHash string, active bool) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if email == "" {
		return "", fmt.Errorf("email must not be empty")
	}
	if _, exists := p.byEmail[email]; exists {
		return "", fmt.Errorf("email already registered: %s", email)
	}

	id := uuid.NewString()
	p.byID[id] = adminauth.Principal{
		ID:           id,
		Email:        email,
		Name:         name,
		Role:         r,
		PasswordHash: passwordHash,
		Active:       active,
	}
	p.byEmail[email] = id

	return id, nil
}

func (p *Provider) GetByEmail(ctx context.Context, email string) (adminauth.Principal, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	id, ok := p.byEmail[email]
	if !ok {
		return adminauth.Principal{}, adminauth.ErrPrincipalNotFound
	}
	return p.byID[id], nil
}

func (p *Provider) GetByID(ctx context.Context, id string) (adminauth.Principal, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	principal, ok := p.byID[id]
	if !ok {
		return adminauth.Principal{}, adminauth.ErrPrincipalNotFound
	}
	return principal, nil
}

func (p *Provider) UpdatePasswordHash(ctx context.Context, id, newHash string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	principal, ok := p.byID[id]
	if !ok {
		return adminauth.ErrPrincipalNotFound
	}
	principal.PasswordHash = newHash
	p.byID[id] = principal
	return nil
}

// SetRole reassigns a principal's role.
func (p *Provider) SetRole(id string, r role.Role) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	principal, ok := p.byID[id]
	if !ok {
		return adminauth.ErrPrincipalNotFound
	}
	principal.Role = r
	p.byID[id] = principal
	return nil
}

// SetActive toggles a principal's activation flag.
func (p *Provider) SetActive(id string, active bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	principal, ok := p.byID[id]
	if !ok {
		return adminauth.ErrPrincipalNotFound
	}
	principal.Active = active
	p.byID[id] = principal
	return nil
}

func (p *Provider) RecordAttempt(ctx context.Context, attempt adminauth.LoginAttempt) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.attempts = append(p.attempts, attempt)
	return nil
}

// Attempts returns a copy of the recorded login attempts.
func (p *Provider) Attempts() []adminauth.LoginAttempt {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]adminauth.LoginAttempt, len(p.attempts))
	copy(out, p.attempts)
	return out
}
