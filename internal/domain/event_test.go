package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSubscriptionAction(t *testing.T) {
	tests := []struct {
		raw  string
		want SubscriptionAction
		err  bool
	}{
		{"add", ActionAdd, false},
		{"remove", ActionRemove, false},
		{" ADD ", ActionAdd, false},
		{"toggle", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSubscriptionAction(tt.raw)
		if tt.err {
			require.ErrorIs(t, err, ErrInvalidAction, "raw %q", tt.raw)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestEventIsUpcoming(t *testing.T) {
	now := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	berlin := time.FixedZone("CEST", 2*60*60)

	tests := []struct {
		name    string
		meeting time.Time
		want    bool
	}{
		{"future", now.Add(time.Minute), true},
		{"past", now.Add(-time.Minute), false},
		{"exactly now", now, false},
		{"same instant other zone", now.In(berlin), false},
		{"future in other zone", now.Add(time.Second).In(berlin), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Event{MeetingTime: tt.meeting}
			assert.Equal(t, tt.want, e.IsUpcoming(now))
		})
	}
}

func TestEventHasMember(t *testing.T) {
	e := Event{Members: []Member{{UserID: "u1", Username: "alice"}}}
	assert.True(t, e.HasMember("u1"))
	assert.False(t, e.HasMember("u2"))
}

func TestIsTokenError(t *testing.T) {
	assert.True(t, IsTokenError(ErrInvalidToken))
	assert.True(t, IsTokenError(ErrMissingSubject))
	assert.True(t, IsTokenError(ErrTokenExpired))
	assert.False(t, IsTokenError(ErrAuthFailed))
}
