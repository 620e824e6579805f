package license

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/platformhq/licensing/internal/types"
)

func TestIsUsable(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		status  types.LicenseStatus
		expires time.Time
		grace   int
		want    bool
	}{
		{
			name:    "active license",
			status:  types.LicenseStatusActive,
			expires: now.AddDate(0, 1, 0),
			want:    true,
		},
		{
			name:    "trial license",
			status:  types.LicenseStatusTrial,
			expires: now.AddDate(0, 0, 14),
			want:    true,
		},
		{
			name:    "expired within grace",
			status:  types.LicenseStatusExpired,
			expires: now.AddDate(0, 0, -3),
			grace:   7,
			want:    true,
		},
		{
			name:    "expired on the grace boundary",
			status:  types.LicenseStatusExpired,
			expires: now.AddDate(0, 0, -7),
			grace:   7,
			want:    true,
		},
		{
			name:    "expired past grace",
			status:  types.LicenseStatusExpired,
			expires: now.AddDate(0, 0, -3),
			grace:   2,
			want:    false,
		},
		{
			name:    "suspended regardless of dates",
			status:  types.LicenseStatusSuspended,
			expires: now.AddDate(0, 1, 0),
			grace:   365,
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &License{
				LicenseStatus:   tt.status,
				ValidUntil:      tt.expires,
				GracePeriodDays: tt.grace,
			}
			assert.Equal(t, tt.want, l.IsUsable(now))
		})
	}
}

func TestHasFeature(t *testing.T) {
	l := &License{Features: []string{"core_features", "api_access"}}

	assert.True(t, l.HasFeature("api_access"))
	assert.False(t, l.HasFeature("white_label"))
	assert.False(t, l.HasFeature(""))
}

func TestDaysUntilExpiry(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		expires time.Time
		want    int
	}{
		{"expiring later today rounds up to one", now.Add(6 * time.Hour), 1},
		{"exactly seven days", now.AddDate(0, 0, 7), 7},
		{"partial eighth day rounds up", now.AddDate(0, 0, 7).Add(time.Hour), 8},
		{"already expired", now.Add(-6 * time.Hour), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &License{ValidUntil: tt.expires}
			assert.Equal(t, tt.want, l.DaysUntilExpiry(now))
		})
	}
}
