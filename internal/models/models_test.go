package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoleValid(t *testing.T) {
	for _, role := range []Role{RoleUser, RoleTrusted, RoleReviewer, RoleAdmin} {
		assert.True(t, role.Valid(), role)
	}
	assert.False(t, Role("superuser").Valid())
	assert.False(t, Role("").Valid())
}

func TestDefaultSeverity(t *testing.T) {
	assert.Equal(t, SeverityMedium, DefaultSeverity(EventUnauthorizedAccess))
	assert.Equal(t, SeverityMedium, DefaultSeverity(EventForbiddenAccess))
	assert.Equal(t, SeverityLow, DefaultSeverity(EventLoginFailure))
	assert.Equal(t, SeverityHigh, DefaultSeverity(EventLoginLockout))
	// Unrecognized types inherit the unknown-event default.
	assert.Equal(t, SeverityMedium, DefaultSeverity("something_new"))
}

func TestActorKey(t *testing.T) {
	id := int64(42)
	assert.Equal(t, "actor:42", (&SecurityEvent{ActorID: &id}).ActorKey())
	assert.Equal(t, "ip:203.0.113.9", (&SecurityEvent{IPAddress: "203.0.113.9"}).ActorKey())
	assert.Equal(t, "unknown", (&SecurityEvent{}).ActorKey())
	// Actor id wins over IP when both are present.
	assert.Equal(t, "actor:42", (&SecurityEvent{ActorID: &id, IPAddress: "203.0.113.9"}).ActorKey())
}

func TestAlertOpen(t *testing.T) {
	alert := &SecurityAlert{}
	assert.True(t, alert.Open())

	now := time.Now()
	alert.AcknowledgedAt = &now
	assert.False(t, alert.Open())
}
