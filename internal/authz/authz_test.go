package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cantolico/guard/internal/models"
)

func ident(id int64, role models.Role) *models.Identity {
	return &models.Identity{ID: id, Role: role}
}

func TestAuthorize_NilIdentity(t *testing.T) {
	requirements := []Requirement{
		AdminOnly(),
		ReviewerOrAdmin(),
		OwnerOrAdmin(7),
	}

	for _, req := range requirements {
		t.Run(req.String(), func(t *testing.T) {
			d := Authorize(nil, req)
			assert.False(t, d.Allowed)
			assert.Equal(t, DenyNotAuthenticated, d.Reason)
		})
	}
}

func TestAuthorize_AdminOnly(t *testing.T) {
	tests := []struct {
		name    string
		role    models.Role
		allowed bool
	}{
		{"admin allowed", models.RoleAdmin, true},
		{"reviewer denied", models.RoleReviewer, false},
		{"trusted denied", models.RoleTrusted, false},
		{"user denied", models.RoleUser, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Authorize(ident(1, tt.role), AdminOnly())
			assert.Equal(t, tt.allowed, d.Allowed)
			if !tt.allowed {
				assert.Equal(t, DenyInsufficientRole, d.Reason)
			}
		})
	}
}

func TestAuthorize_ReviewerOrAdmin(t *testing.T) {
	tests := []struct {
		name    string
		role    models.Role
		allowed bool
	}{
		{"admin allowed", models.RoleAdmin, true},
		{"reviewer allowed", models.RoleReviewer, true},
		{"trusted denied", models.RoleTrusted, false},
		{"user denied", models.RoleUser, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Authorize(ident(1, tt.role), ReviewerOrAdmin())
			assert.Equal(t, tt.allowed, d.Allowed)
		})
	}
}

func TestAuthorize_OwnerOrAdmin(t *testing.T) {
	tests := []struct {
		name     string
		identity *models.Identity
		ownerID  int64
		allowed  bool
	}{
		{"owner allowed", ident(7, models.RoleUser), 7, true},
		{"non-owner denied", ident(7, models.RoleUser), 8, false},
		{"admin allowed for any owner", ident(1, models.RoleAdmin), 8, true},
		{"reviewer is not owner", ident(3, models.RoleReviewer), 8, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Authorize(tt.identity, OwnerOrAdmin(tt.ownerID))
			assert.Equal(t, tt.allowed, d.Allowed)
		})
	}
}

func TestAuthorize_UnknownRoleDenied(t *testing.T) {
	d := Authorize(ident(1, models.Role("superuser")), AdminOnly())
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyInsufficientRole, d.Reason)
}
