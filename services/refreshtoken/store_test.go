package refreshtoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/authx/clock"
	"github.com/tech-arch1tect/authx/config"
	"github.com/tech-arch1tect/authx/testutils"
)

func getTestStoreConfig() *config.Config {
	return &config.Config{
		RefreshToken: config.RefreshTokenConfig{
			Expiry:        168 * time.Hour,
			TokenLength:   32,
			SweepInterval: time.Hour,
		},
	}
}

func newTestStore(t *testing.T) (*Store, *clock.Fixed) {
	db := testutils.SetupTestDB(t, &RefreshToken{})
	clk := &clock.Fixed{Instant: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return NewStore(db, getTestStoreConfig(), clk, nil), clk
}

func TestStore_Create(t *testing.T) {
	store, clk := newTestStore(t)

	t.Run("persists hash, never the raw token", func(t *testing.T) {
		created, err := store.Create(7, "192.0.2.1")
		require.NoError(t, err)

		assert.NotEmpty(t, created.Raw)
		// 32 random bytes base64url-encode to 43 characters: >= 128 bits entropy
		assert.GreaterOrEqual(t, len(created.Raw), 43)
		assert.Equal(t, HashToken(created.Raw), created.Record.TokenHash)
		assert.NotEqual(t, created.Raw, created.Record.TokenHash)

		assert.Equal(t, uint(7), created.Record.SubjectID)
		assert.Equal(t, "192.0.2.1", created.Record.IssuingIP)
		assert.False(t, created.Record.Revoked)
		assert.Nil(t, created.Record.ReplacedByID)
		assert.Equal(t, clk.Now().Add(168*time.Hour), created.Record.ExpiresAt)
	})

	t.Run("token strings are unique", func(t *testing.T) {
		first, err := store.Create(7, "")
		require.NoError(t, err)
		second, err := store.Create(7, "")
		require.NoError(t, err)
		assert.NotEqual(t, first.Raw, second.Raw)
		assert.NotEqual(t, first.Record.TokenHash, second.Record.TokenHash)
	})
}

func TestStore_FindByToken(t *testing.T) {
	store, _ := newTestStore(t)

	created, err := store.Create(7, "")
	require.NoError(t, err)

	t.Run("found by raw string", func(t *testing.T) {
		record, err := store.FindByToken(created.Raw)
		require.NoError(t, err)
		assert.Equal(t, created.Record.ID, record.ID)
		assert.True(t, record.Usable(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)))
	})

	t.Run("timestamps come back UTC", func(t *testing.T) {
		record, err := store.FindByToken(created.Raw)
		require.NoError(t, err)
		assert.Equal(t, time.UTC, record.ExpiresAt.Location())
		assert.Equal(t, time.UTC, record.IssuedAt.Location())
	})

	t.Run("never-issued token", func(t *testing.T) {
		_, err := store.FindByToken("was-never-issued")
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})
}

func TestStore_MarkRotated(t *testing.T) {
	store, _ := newTestStore(t)

	t.Run("first rotation wins, second loses", func(t *testing.T) {
		original, err := store.Create(7, "")
		require.NoError(t, err)
		successor, err := store.Create(7, "")
		require.NoError(t, err)

		require.NoError(t, store.MarkRotated(original.Record.ID, successor.Record.ID))

		record, err := store.FindByID(original.Record.ID)
		require.NoError(t, err)
		require.NotNil(t, record.ReplacedByID)
		assert.Equal(t, successor.Record.ID, *record.ReplacedByID)
		assert.True(t, record.Revoked)
		require.NotNil(t, record.RevokedAt)

		impostor, err := store.Create(7, "")
		require.NoError(t, err)
		err = store.MarkRotated(original.Record.ID, impostor.Record.ID)
		assert.ErrorIs(t, err, ErrAlreadyRotated)

		// successor link unchanged by the losing attempt
		record, err = store.FindByID(original.Record.ID)
		require.NoError(t, err)
		assert.Equal(t, successor.Record.ID, *record.ReplacedByID)
	})

	t.Run("revoked token cannot be rotated", func(t *testing.T) {
		created, err := store.Create(8, "")
		require.NoError(t, err)
		successor, err := store.Create(8, "")
		require.NoError(t, err)

		require.NoError(t, store.Revoke(created.Record.ID))
		err = store.MarkRotated(created.Record.ID, successor.Record.ID)
		assert.ErrorIs(t, err, ErrAlreadyRotated)
	})
}

func TestStore_Revoke(t *testing.T) {
	store, _ := newTestStore(t)

	created, err := store.Create(7, "")
	require.NoError(t, err)

	require.NoError(t, store.Revoke(created.Record.ID))

	record, err := store.FindByID(created.Record.ID)
	require.NoError(t, err)
	assert.True(t, record.Revoked)
	require.NotNil(t, record.RevokedAt)
	firstRevokedAt := *record.RevokedAt

	t.Run("idempotent", func(t *testing.T) {
		require.NoError(t, store.Revoke(created.Record.ID))

		record, err := store.FindByID(created.Record.ID)
		require.NoError(t, err)
		assert.Equal(t, firstRevokedAt, *record.RevokedAt)
	})
}

func TestStore_RevokeChain(t *testing.T) {
	store, _ := newTestStore(t)

	// three-generation lineage: gen0 -> gen1 -> gen2 (gen2 still active)
	gen0, err := store.Create(7, "")
	require.NoError(t, err)
	gen1, err := store.Create(7, "")
	require.NoError(t, err)
	gen2, err := store.Create(7, "")
	require.NoError(t, err)
	require.NoError(t, store.MarkRotated(gen0.Record.ID, gen1.Record.ID))
	require.NoError(t, store.MarkRotated(gen1.Record.ID, gen2.Record.ID))

	unrelated, err := store.Create(9, "")
	require.NoError(t, err)

	revoked, err := store.RevokeChain(gen0.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, revoked) // gen0 and gen1 were already revoked by rotation

	for _, id := range []uint{gen0.Record.ID, gen1.Record.ID, gen2.Record.ID} {
		record, err := store.FindByID(id)
		require.NoError(t, err)
		assert.True(t, record.Revoked)
	}

	record, err := store.FindByID(unrelated.Record.ID)
	require.NoError(t, err)
	assert.False(t, record.Revoked)
}

func TestStore_RevokeAllForSubject(t *testing.T) {
	store, _ := newTestStore(t)

	for i := 0; i < 3; i++ {
		_, err := store.Create(7, "")
		require.NoError(t, err)
	}
	other, err := store.Create(8, "")
	require.NoError(t, err)

	count, err := store.RevokeAllForSubject(7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	record, err := store.FindByID(other.Record.ID)
	require.NoError(t, err)
	assert.False(t, record.Revoked)
}

func TestStore_SweepExpired(t *testing.T) {
	store, clk := newTestStore(t)

	stale, err := store.Create(7, "")
	require.NoError(t, err)
	alreadyRevoked, err := store.Create(7, "")
	require.NoError(t, err)
	require.NoError(t, store.Revoke(alreadyRevoked.Record.ID))

	clk.Advance(169 * time.Hour)

	fresh, err := store.Create(7, "")
	require.NoError(t, err)

	count, err := store.SweepExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	record, err := store.FindByID(stale.Record.ID)
	require.NoError(t, err)
	assert.True(t, record.Revoked)
	assert.Nil(t, record.ReplacedByID)

	record, err = store.FindByID(fresh.Record.ID)
	require.NoError(t, err)
	assert.False(t, record.Revoked)

	t.Run("idempotent", func(t *testing.T) {
		count, err := store.SweepExpired()
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestStore_PurgeRevokedBefore(t *testing.T) {
	store, clk := newTestStore(t)

	old, err := store.Create(7, "")
	require.NoError(t, err)
	require.NoError(t, store.Revoke(old.Record.ID))

	clk.Advance(200 * time.Hour)
	recent, err := store.Create(7, "")
	require.NoError(t, err)
	require.NoError(t, store.Revoke(recent.Record.ID))

	purged, err := store.PurgeRevokedBefore(clk.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = store.FindByID(old.Record.ID)
	assert.ErrorIs(t, err, ErrTokenNotFound)
	_, err = store.FindByID(recent.Record.ID)
	require.NoError(t, err)
}

func TestRefreshToken_Usable(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	successorID := uint(99)

	cases := []struct {
		name   string
		token  RefreshToken
		usable bool
	}{
		{"active and unexpired", RefreshToken{ExpiresAt: now.Add(time.Hour)}, true},
		{"expired", RefreshToken{ExpiresAt: now.Add(-time.Second)}, false},
		{"revoked", RefreshToken{ExpiresAt: now.Add(time.Hour), Revoked: true}, false},
		{"rotated", RefreshToken{ExpiresAt: now.Add(time.Hour), ReplacedByID: &successorID}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.usable, tc.token.Usable(now))
		})
	}
}
