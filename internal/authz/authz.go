// Package authz is the single place role comparisons occur. Handlers and
// middleware build a Requirement and ask Authorize for a Decision; callers
// are responsible for auditing denials.
package authz

import "github.com/cantolico/guard/internal/models"

// DenyReason explains why a Decision denied access.
type DenyReason string

const (
	DenyNotAuthenticated DenyReason = "not_authenticated"
	DenyInsufficientRole DenyReason = "insufficient_role"
)

// Decision is the result of an authorization check.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

var allow = Decision{Allowed: true}

func deny(reason DenyReason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

type requirementKind int

const (
	reqAdminOnly requirementKind = iota
	reqReviewerOrAdmin
	reqOwnerOrAdmin
)

// Requirement describes which roles or ownership relations may proceed.
type Requirement struct {
	kind    requirementKind
	ownerID int64
}

// AdminOnly requires the admin role exactly.
func AdminOnly() Requirement {
	return Requirement{kind: reqAdminOnly}
}

// ReviewerOrAdmin requires the reviewer or admin role.
func ReviewerOrAdmin() Requirement {
	return Requirement{kind: reqReviewerOrAdmin}
}

// OwnerOrAdmin requires the identity to own the resource, or be an admin.
func OwnerOrAdmin(ownerID int64) Requirement {
	return Requirement{kind: reqOwnerOrAdmin, ownerID: ownerID}
}

// String names the requirement for audit messages.
func (r Requirement) String() string {
	switch r.kind {
	case reqAdminOnly:
		return "admin_only"
	case reqReviewerOrAdmin:
		return "reviewer_or_admin"
	case reqOwnerOrAdmin:
		return "owner_or_admin"
	}
	return "unknown"
}

// Authorize decides whether identity may proceed under req. It is pure and
// total: no I/O, no panics, deterministic for every (identity, req) pair.
// A nil identity always denies with not_authenticated.
func Authorize(identity *models.Identity, req Requirement) Decision {
	if identity == nil {
		return deny(DenyNotAuthenticated)
	}

	if identity.Role == models.RoleAdmin {
		return allow
	}

	switch req.kind {
	case reqAdminOnly:
		return deny(DenyInsufficientRole)
	case reqReviewerOrAdmin:
		if identity.Role == models.RoleReviewer {
			return allow
		}
		return deny(DenyInsufficientRole)
	case reqOwnerOrAdmin:
		if identity.ID == req.ownerID {
			return allow
		}
		return deny(DenyInsufficientRole)
	}

	return deny(DenyInsufficientRole)
}
