package billing

import (
	"context"
	"errors"
	"sync"
	"time"

	"rwandabill/models"
)

var (
	// ErrNotFound is returned for an unknown approval id.
	ErrNotFound = errors.New("approval not found")
	// ErrForbidden is returned when the reviewer may not review the account.
	ErrForbidden = errors.New("approval not allowed for this reviewer")
)

// reviewable reports whether reviewer may see and decide on u. Service
// admins review member signups only.
func reviewable(reviewer models.Role, u models.PendingUser) bool {
	switch reviewer {
	case models.RoleSuperAdmin:
		return true
	case models.RoleAdmin:
		return models.MapBackendRole(u.Role) == models.RoleMember
	}
	return false
}

// MockApprovals is an in-memory approval queue used with the mock
// credential exchange.
type MockApprovals struct {
	mu    sync.Mutex
	users []models.PendingUser
}

// NewMockApprovals seeds the queue with a few pending signups.
func NewMockApprovals() *MockApprovals {
	now := time.Now().UTC()
	return &MockApprovals{users: []models.PendingUser{
		{ID: "101", FullName: "Marie Claire", Email: "marie@example.com", Telephone: "0788123456", District: "Gasabo", Sector: "Remera", Role: "USER", Status: models.ApprovalPending, CreatedAt: now.Add(-48 * time.Hour)},
		{ID: "102", FullName: "Joseph Niyonzima", Email: "joseph@example.com", Telephone: "0788654321", District: "Kicukiro", Sector: "Gatenga", Role: "ADMIN", Service: "SANITATION", Status: models.ApprovalPending, CreatedAt: now.Add(-24 * time.Hour)},
		{ID: "103", FullName: "Grace Mukamana", Email: "grace@example.com", Telephone: "0722000111", District: "Nyarugenge", Sector: "Nyamirambo", Role: "ADMIN", Service: "WATER", Status: models.ApprovalPending, CreatedAt: now.Add(-2 * time.Hour)},
	}}
}

func (m *MockApprovals) PendingApprovals(ctx context.Context, reviewer models.Role) ([]models.PendingUser, error) {
	if reviewer != models.RoleAdmin && reviewer != models.RoleSuperAdmin {
		return nil, ErrForbidden
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PendingUser
	for _, u := range m.users {
		if u.Status == models.ApprovalPending && reviewable(reviewer, u) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *MockApprovals) UpdateApproval(ctx context.Context, reviewer models.Role, id string, req models.ApprovalRequest) (*models.PendingUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if string(m.users[i].ID) == id {
			if !reviewable(reviewer, m.users[i]) {
				return nil, ErrForbidden
			}
			m.users[i].Status = req.Status
			u := m.users[i]
			return &u, nil
		}
	}
	return nil, ErrNotFound
}
