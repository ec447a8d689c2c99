package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCanAccessOrg(t *testing.T) {
	ownOrg := uuid.New()
	otherOrg := uuid.New()

	tests := []struct {
		name string
		p    Principal
		org  uuid.UUID
		want bool
	}{
		{"admin sees any organization", Principal{Role: RoleAdmin}, otherOrg, true},
		{"operator sees any organization", Principal{Role: RoleOperator}, otherOrg, true},
		{"client sees its own organization", Principal{Role: RoleClient, OrganizationID: ownOrg}, ownOrg, true},
		{"client denied a foreign organization", Principal{Role: RoleClient, OrganizationID: ownOrg}, otherOrg, false},
		{"client without an organization is denied", Principal{Role: RoleClient}, otherOrg, false},
		{"unknown role is treated as client", Principal{Role: Role("guest"), OrganizationID: ownOrg}, otherOrg, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.CanAccessOrg(tt.org))
		})
	}
}

func TestSessionActiveAt(t *testing.T) {
	now := time.Now()
	s := Session{ExpiresAt: now.Add(time.Hour)}

	assert.True(t, s.ActiveAt(now))
	assert.False(t, s.ActiveAt(now.Add(2*time.Hour)), "expired session is inactive")

	s.Revoked = true
	assert.False(t, s.ActiveAt(now), "revoked session is inactive")
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleOperator.Valid())
	assert.True(t, RoleClient.Valid())
	assert.False(t, Role("superuser").Valid())
	assert.False(t, Role("").Valid())
}
