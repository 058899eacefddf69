package models

import (
	"strings"
	"time"
)

// Account is a user record held by the mock backend.
type Account struct {
	ID              string         `bson:"id" json:"id"`
	FullName        string         `bson:"fullName" json:"fullName"`
	Email           string         `bson:"email" json:"email"`
	Telephone       string         `bson:"telephone" json:"telephone"`
	District        string         `bson:"district" json:"district"`
	Sector          string         `bson:"sector" json:"sector"`
	PasswordHash    string         `bson:"passwordHash" json:"-"`
	Role            string         `bson:"role" json:"role"`                           // USER, ADMIN or SUPER_ADMIN
	Service         string         `bson:"service,omitempty" json:"service,omitempty"` // WATER, SANITATION or SECURITY
	Provider        string         `bson:"provider" json:"provider"`                   // local or google
	Status          ApprovalStatus `bson:"status" json:"status"`
	ApprovedAt      *time.Time     `bson:"approvedAt,omitempty" json:"approvedAt,omitempty"`
	ApprovedBy      string         `bson:"approvedBy,omitempty" json:"approvedBy,omitempty"`
	RejectionReason string         `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`
	EmailVerified   bool           `bson:"emailVerified" json:"emailVerified"`
	CreatedAt       time.Time      `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time      `bson:"updatedAt" json:"updatedAt"`
}

// Approved reports whether the account passed review.
func (a *Account) Approved() bool {
	return a.Status == ApprovalApproved
}

// NormalizeEmail lowercases and trims an email for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AuthResponse renders the account the way the auth endpoints answer.
func (a *Account) AuthResponse(token, message string) AuthResponse {
	success := true
	approved := a.Approved()
	active := approved || a.Role == BackendRole(RoleMember)
	return AuthResponse{
		Success:         &success,
		ID:              BackendID(a.ID),
		Email:           a.Email,
		FullName:        a.FullName,
		Telephone:       a.Telephone,
		District:        a.District,
		Sector:          a.Sector,
		Role:            a.Role,
		Service:         a.Service,
		Token:           token,
		Message:         message,
		IsActive:        &active,
		Approved:        &approved,
		ApprovedAt:      a.ApprovedAt,
		ApprovedBy:      a.ApprovedBy,
		RejectionReason: a.RejectionReason,
		EmailVerified:   &a.EmailVerified,
	}
}

// PendingUser renders the account as an approval queue entry.
func (a *Account) PendingUser() PendingUser {
	return PendingUser{
		ID:        BackendID(a.ID),
		FullName:  a.FullName,
		Email:     a.Email,
		Telephone: a.Telephone,
		District:  a.District,
		Sector:    a.Sector,
		Role:      a.Role,
		Service:   a.Service,
		Status:    a.Status,
		CreatedAt: a.CreatedAt,
	}
}
