package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,emailorphone"`
	Password string `json:"password" validate:"required,min=6,max=100"`
}

// SignupRequest is the body of the signup endpoints. ConfirmPassword is
// checked on the client and never sent.
type SignupRequest struct {
	FullName        string `json:"fullName" validate:"required,min=2,max=100,fullname"`
	Email           string `json:"email" validate:"required,email,max=255"`
	Telephone       string `json:"telephone" validate:"required,rwphone"`
	District        string `json:"district" validate:"required"`
	Sector          string `json:"sector" validate:"required"`
	Password        string `json:"password" validate:"required,min=8,max=100,complexpassword"`
	ConfirmPassword string `json:"-" validate:"eqfield=Password"`
	Role            string `json:"role,omitempty"`
	Service         string `json:"service,omitempty"`
}

// OAuthSignupRequest is the body of POST /auth/oauth/signup.
type OAuthSignupRequest struct {
	FullName string `json:"fullName" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
}

// BackendID accepts both numeric and string identifiers.
type BackendID string

func (id *BackendID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = BackendID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("backend id: %w", err)
	}
	*id = BackendID(n.String())
	return nil
}

// AuthResponse is what the backend answers on login, signup and /auth/me.
type AuthResponse struct {
	Success         *bool      `json:"success,omitempty"`
	ID              BackendID  `json:"id,omitempty"`
	Email           string     `json:"email,omitempty"`
	FullName        string     `json:"fullName,omitempty"`
	Telephone       string     `json:"telephone,omitempty"`
	District        string     `json:"district,omitempty"`
	Sector          string     `json:"sector,omitempty"`
	Role            string     `json:"role,omitempty"`
	Service         string     `json:"service,omitempty"`
	Group           string     `json:"group,omitempty"`
	Token           string     `json:"token,omitempty"`
	AccessToken     string     `json:"accessToken,omitempty"`
	Message         string     `json:"message,omitempty"`
	IsActive        *bool      `json:"isActive,omitempty"`
	Approved        *bool      `json:"approved,omitempty"`
	ApprovedAt      *time.Time `json:"approvedAt,omitempty"`
	ApprovedBy      string     `json:"approvedBy,omitempty"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
	EmailVerified   *bool      `json:"emailVerified,omitempty"`
}

// Failed reports whether the backend explicitly flagged the response as
// unsuccessful.
func (r AuthResponse) Failed() bool {
	return r.Success != nil && !*r.Success
}

// BearerToken returns the access token carried by the response, if any.
func (r AuthResponse) BearerToken() string {
	if r.AccessToken != "" {
		return r.AccessToken
	}
	return r.Token
}

// Identity normalizes the backend user. ok is false when the backend
// reported an admin whose service could not be recognised.
func (r AuthResponse) Identity() (identity Identity, ok bool) {
	ok = true
	role := MapBackendRole(r.Role)
	var access Access
	switch role {
	case RoleAdmin:
		svc, known := ParseBackendService(r.Service)
		if !known {
			ok = r.Service == ""
			svc = ""
		}
		access = AdminAccess{Service: svc}
	case RoleSuperAdmin:
		access = SuperAdminAccess{}
	default:
		access = MemberAccess{}
	}
	group := r.Group
	if group == "" {
		group = DefaultGroup
	}
	return NewIdentity(Profile{
		ID:        string(r.ID),
		FullName:  r.FullName,
		Email:     r.Email,
		Telephone: r.Telephone,
		District:  r.District,
		Sector:    r.Sector,
		Group:     group,
	}, access), ok
}

// RefreshResponse is the body of POST /auth/refreshtoken.
type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
	Token       string `json:"token,omitempty"`
}

// BearerToken returns the new access token.
func (r RefreshResponse) BearerToken() string {
	if r.AccessToken != "" {
		return r.AccessToken
	}
	return r.Token
}

// ApprovalStatus is the review state of a signed-up account.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// ApprovalRequest is the body of PUT /user-approvals/:id/status.
type ApprovalRequest struct {
	Status          ApprovalStatus `json:"status" binding:"required,oneof=APPROVED REJECTED"`
	RejectionReason string         `json:"rejectionReason,omitempty"`
}

// PendingUser is one entry of the approval queue.
type PendingUser struct {
	ID        BackendID      `json:"id"`
	FullName  string         `json:"fullName"`
	Email     string         `json:"email"`
	Telephone string         `json:"telephone"`
	District  string         `json:"district"`
	Sector    string         `json:"sector"`
	Role      string         `json:"role"`
	Service   string         `json:"service,omitempty"`
	Status    ApprovalStatus `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
}
