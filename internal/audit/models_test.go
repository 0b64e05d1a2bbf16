package audit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"circles/internal/audit"
	"circles/pkg/domain"
)

func TestActionCategory(t *testing.T) {
	tests := []struct {
		action audit.Action
		want   audit.Category
	}{
		{audit.ActionIdentityCreated, audit.CategoryConsent},
		{audit.ActionInviteCreated, audit.CategoryConsent},
		{audit.ActionInviteAccepted, audit.CategoryConsent},
		{audit.ActionConnectionRevoked, audit.CategoryConsent},
		{audit.ActionUserBlocked, audit.CategorySecurity},
		{audit.ActionInviteDenied, audit.CategorySecurity},
		{audit.ActionLawViolation, audit.CategorySecurity},
		{audit.ActionDisplayHintSet, audit.CategoryOperations},
		{audit.ActionSignalSet, audit.CategoryOperations},
		{audit.ActionSignalMapResolved, audit.CategoryOperations},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.action.Category())
		})
	}
}

func TestActionCategoryUnknownAction(t *testing.T) {
	assert.Equal(t, audit.CategoryOperations, audit.Action("made_up").Category())
}

func TestNewEvent(t *testing.T) {
	userID := domain.NewUserID()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	event := audit.NewEvent(audit.ActionInviteCreated, userID, "abcdefgh...", "ok", now)

	assert.Equal(t, audit.CategoryConsent, event.Category)
	assert.Equal(t, now, event.Timestamp)
	assert.Equal(t, userID, event.UserID)
	assert.Equal(t, "abcdefgh...", event.Subject)
	assert.Equal(t, "ok", event.Outcome)
	assert.Empty(t, event.Reason)
}
