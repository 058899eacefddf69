package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"rwandabill/models"
	"rwandabill/services/auth"
)

// ApprovalService manages the account approval queue on behalf of a
// reviewer with the given role.
type ApprovalService interface {
	PendingApprovals(ctx context.Context, reviewer models.Role) ([]models.PendingUser, error)
	UpdateApproval(ctx context.Context, reviewer models.Role, id string, req models.ApprovalRequest) (*models.PendingUser, error)
}

// HTTPApprovals calls /user-approvals through the request gateway. The
// backend applies the review rules from the bearer token, so the reviewer
// role is not sent.
type HTTPApprovals struct {
	baseURL string
	doer    auth.Doer
}

// NewHTTPApprovals returns an approval client rooted at baseURL.
func NewHTTPApprovals(baseURL string, doer auth.Doer) *HTTPApprovals {
	return &HTTPApprovals{baseURL: strings.TrimRight(baseURL, "/"), doer: doer}
}

// page is the paged list layout the backend answers with.
type page struct {
	Content       []models.PendingUser `json:"content"`
	TotalElements int                  `json:"totalElements"`
}

func (h *HTTPApprovals) PendingApprovals(ctx context.Context, _ models.Role) ([]models.PendingUser, error) {
	data, err := h.call(ctx, http.MethodGet, "/user-approvals/pending", nil)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var users []models.PendingUser
		if err := json.Unmarshal(data, &users); err != nil {
			return nil, fmt.Errorf("decode pending approvals: %w", err)
		}
		return users, nil
	}
	var p page
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode pending approvals: %w", err)
	}
	return p.Content, nil
}

func (h *HTTPApprovals) UpdateApproval(ctx context.Context, _ models.Role, id string, req models.ApprovalRequest) (*models.PendingUser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	data, err := h.call(ctx, http.MethodPut, "/user-approvals/"+url.PathEscape(id)+"/status", body)
	if err != nil {
		return nil, err
	}
	var user models.PendingUser
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("decode approval update: %w", err)
	}
	return &user, nil
}

func (h *HTTPApprovals) call(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := h.doer.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &auth.BackendError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}
	return data, nil
}

// ScopeToService keeps the entries an admin of svc may review. Entries
// without a service are user signups and stay visible to every admin.
func ScopeToService(users []models.PendingUser, svc models.Service) []models.PendingUser {
	out := make([]models.PendingUser, 0, len(users))
	for _, u := range users {
		if u.Service == "" {
			out = append(out, u)
			continue
		}
		if s, ok := models.ParseBackendService(u.Service); ok && s == svc {
			out = append(out, u)
		}
	}
	return out
}
