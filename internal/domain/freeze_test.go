package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func TestScopeCovers(t *testing.T) {
	repoWide := Scope{Repository: "acme/api"}
	assert.True(t, repoWide.Covers("main"))
	assert.True(t, repoWide.Covers("dev"))

	branch := Scope{Repository: "acme/api", Branch: "main"}
	assert.True(t, branch.Covers("main"))
	assert.False(t, branch.Covers("dev"))
}

func TestScopeEqual_RepoWideIsNotBranchScope(t *testing.T) {
	repoWide := Scope{Repository: "acme/api"}
	branch := Scope{Repository: "acme/api", Branch: "main"}

	assert.False(t, repoWide.Equal(branch))
	assert.True(t, repoWide.Equal(Scope{Repository: "acme/api"}))
}

func TestFreezingAt(t *testing.T) {
	tests := []struct {
		name   string
		record *FreezeRecord
		want   bool
	}{
		{
			name:   "active without expiry",
			record: NewFreezeRecord("acme/api", 1, nil, at.Add(-time.Hour), nil, nil, "alice"),
			want:   true,
		},
		{
			name:   "active with future expiry",
			record: NewFreezeRecord("acme/api", 1, nil, at.Add(-time.Hour), timePtr(at.Add(time.Hour)), nil, "alice"),
			want:   true,
		},
		{
			name:   "expiry already passed",
			record: NewFreezeRecord("acme/api", 1, nil, at.Add(-2*time.Hour), timePtr(at.Add(-time.Minute)), nil, "alice"),
			want:   false,
		},
		{
			name:   "expiry exactly now",
			record: NewFreezeRecord("acme/api", 1, nil, at.Add(-time.Hour), timePtr(at), nil, "alice"),
			want:   false,
		},
		{
			name:   "start in the future",
			record: NewFreezeRecord("acme/api", 1, nil, at.Add(time.Hour), nil, nil, "alice"),
			want:   false,
		},
		{
			name:   "scheduled is not freezing",
			record: NewScheduledFreezeRecord("acme/api", 1, nil, at.Add(-time.Hour), nil, nil, "alice"),
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.record.FreezingAt(at))
		})
	}

	t.Run("ended record is not freezing", func(t *testing.T) {
		record := NewFreezeRecord("acme/api", 1, nil, at.Add(-time.Hour), nil, nil, "alice")
		record.EndedAt = timePtr(at.Add(-time.Minute))
		assert.False(t, record.FreezingAt(at))
	})
}

func TestUnlockAppliesTo(t *testing.T) {
	freeze := NewFreezeRecord("acme/api", 1, nil, at.Add(-time.Hour), nil, nil, "alice")

	newer := &UnlockedPr{Repository: "acme/api", InstallationID: 1, UnlockedAt: at}
	assert.True(t, newer.AppliesTo(freeze))

	older := &UnlockedPr{Repository: "acme/api", InstallationID: 1, UnlockedAt: at.Add(-2 * time.Hour)}
	assert.False(t, older.AppliesTo(freeze))

	otherRepo := &UnlockedPr{Repository: "acme/web", InstallationID: 1, UnlockedAt: at}
	assert.False(t, otherRepo.AppliesTo(freeze))
}

func TestParseRepository(t *testing.T) {
	repo, err := ParseRepository("acme/api")
	require.NoError(t, err)
	assert.Equal(t, "acme", repo.Owner)
	assert.Equal(t, "api", repo.Name)
	assert.Equal(t, "acme/api", repo.FullName())

	for _, bad := range []string{"", "acme", "/api", "acme/", "a/b/c"} {
		_, err := ParseRepository(bad)
		assert.ErrorIs(t, err, ErrInvalidRepository, "input %q", bad)
	}
}

func TestRecordScope(t *testing.T) {
	repoWide := NewFreezeRecord("acme/api", 1, nil, at, nil, nil, "alice")
	assert.Equal(t, Scope{Repository: "acme/api"}, repoWide.Scope())

	branch := NewFreezeRecord("acme/api", 1, strPtr("main"), at, nil, nil, "alice")
	assert.Equal(t, Scope{Repository: "acme/api", Branch: "main"}, branch.Scope())
}
