package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionRecordValid(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ttl := time.Hour

	cases := []struct {
		name string
		rec  *SessionRecord
		want bool
	}{
		{"nil record", nil, false},
		{"empty token", &SessionRecord{IssuedAt: now}, false},
		{"zero timestamp", &SessionRecord{Token: "abc"}, false},
		{"fresh", &SessionRecord{Token: "abc", IssuedAt: now}, true},
		{"just under ttl", &SessionRecord{Token: "abc", IssuedAt: now.Add(-ttl + time.Millisecond)}, true},
		{"exactly ttl", &SessionRecord{Token: "abc", IssuedAt: now.Add(-ttl)}, false},
		{"expired", &SessionRecord{Token: "abc", IssuedAt: now.Add(-3601 * time.Second)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.rec.Valid(now, ttl))
		})
	}
}

func TestSessionRecordRemaining(t *testing.T) {
	now := time.Now()
	rec := &SessionRecord{Token: "abc", IssuedAt: now.Add(-10 * time.Minute)}
	assert.Equal(t, 50*time.Minute, rec.Remaining(now, time.Hour))

	rec.IssuedAt = now.Add(-2 * time.Hour)
	assert.Zero(t, rec.Remaining(now, time.Hour))
}

func TestRoleSet(t *testing.T) {
	set := NewRoleSet("viewer", "", "dev")
	assert.True(t, set.Has("dev"))
	assert.False(t, set.Has(""))
	assert.True(t, set.Any([]string{"admin", "dev"}))
	assert.False(t, set.Any([]string{"admin"}))
	assert.Equal(t, []string{"dev", "viewer"}, set.Slice())
	assert.False(t, NewRoleSet().Any([]string{"admin"}))
}
