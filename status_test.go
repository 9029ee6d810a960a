package mintsdk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolveStatus(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	hour := time.Hour

	tests := []struct {
		name  string
		state ClaimState
		want  Status
	}{
		{
			name:  "before start",
			state: ClaimState{StartDate: now.Add(hour), TotalMax: 10},
			want:  StatusUpcoming,
		},
		{
			name:  "upcoming wins over sold out",
			state: ClaimState{StartDate: now.Add(hour), TotalMax: 10, TotalMinted: 10},
			want:  StatusUpcoming,
		},
		{
			name:  "inside window",
			state: ClaimState{StartDate: now.Add(-hour), EndDate: now.Add(hour), TotalMax: 10, TotalMinted: 3},
			want:  StatusActive,
		},
		{
			name:  "sold out",
			state: ClaimState{StartDate: now.Add(-hour), EndDate: now.Add(hour), TotalMax: 100, TotalMinted: 100},
			want:  StatusSoldOut,
		},
		{
			name:  "sold out beats ended",
			state: ClaimState{StartDate: now.Add(-2 * hour), EndDate: now.Add(-hour), TotalMax: 100, TotalMinted: 100},
			want:  StatusSoldOut,
		},
		{
			name:  "ended",
			state: ClaimState{StartDate: now.Add(-2 * hour), EndDate: now.Add(-hour), TotalMax: 100, TotalMinted: 5},
			want:  StatusEnded,
		},
		{
			name:  "end date is exclusive",
			state: ClaimState{EndDate: now},
			want:  StatusEnded,
		},
		{
			name:  "zero max is unlimited",
			state: ClaimState{TotalMinted: 1_000_000},
			want:  StatusActive,
		},
		{
			name:  "no dates",
			state: ClaimState{TotalMax: 10, TotalMinted: 9},
			want:  StatusActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := tt.state
			require.Equal(t, tt.want, ResolveStatus(&state, now))
			// same inputs, same answer
			require.Equal(t, tt.want, ResolveStatus(&state, now))
		})
	}
}
