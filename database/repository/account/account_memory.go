package accountRepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"rwandabill/models"
)

// MemoryAccountRepo keeps accounts in process memory.
type MemoryAccountRepo struct {
	mu       sync.RWMutex
	accounts map[string]models.Account
}

// NewMemoryAccountRepo returns an empty in-memory repository.
func NewMemoryAccountRepo() *MemoryAccountRepo {
	return &MemoryAccountRepo{accounts: make(map[string]models.Account)}
}

func (r *MemoryAccountRepo) Create(ctx context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account.Email = models.NormalizeEmail(account.Email)
	for _, a := range r.accounts {
		if a.Email == account.Email {
			return ErrDuplicateEmail
		}
	}
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now
	r.accounts[account.ID] = *account
	return nil
}

func (r *MemoryAccountRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &a, nil
}

func (r *MemoryAccountRepo) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	email = models.NormalizeEmail(email)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.accounts {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (r *MemoryAccountRepo) Update(ctx context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[account.ID]; !ok {
		return ErrAccountNotFound
	}
	account.UpdatedAt = time.Now().UTC()
	r.accounts[account.ID] = *account
	return nil
}

func (r *MemoryAccountRepo) ListByStatus(ctx context.Context, status models.ApprovalStatus) ([]models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Account
	for _, a := range r.accounts {
		if a.Status == status {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryAccountRepo) CountByRole(ctx context.Context, role string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, a := range r.accounts {
		if a.Role == role {
			n++
		}
	}
	return n, nil
}
