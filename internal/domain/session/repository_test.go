package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Anvoria/identra/internal/credentials"
	"github.com/Anvoria/identra/internal/domain/user"
	"github.com/Anvoria/identra/internal/utils"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db := utils.SetupTestDB(t, &user.User{}, &Session{})
	db.Exec("DELETE FROM sessions")
	db.Exec("DELETE FROM users")
	return db
}

func createTestUser(t *testing.T, db *gorm.DB) *user.User {
	t.Helper()
	u := &user.User{Username: "testuser-" + credentials.NewJTI()[:8]}
	require.NoError(t, user.NewRepository(db).Create(u))
	return u
}

func openSession(t *testing.T, repo Repository, userID uint, jtiHash string, ttl time.Duration) {
	t.Helper()
	now := time.Now()
	require.NoError(t, repo.Create(&Session{
		UserID:    userID,
		JTIHash:   jtiHash,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}))
}

func TestRepository_FindActive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	u := createTestUser(t, db)
	now := time.Now()

	openSession(t, repo, u.ID, "live-hash", time.Hour)
	openSession(t, repo, u.ID, "expired-hash", -time.Hour)

	t.Run("live session is found", func(t *testing.T) {
		sess, err := repo.FindActive(u.ID, "live-hash", now)
		require.NoError(t, err)
		assert.Equal(t, u.ID, sess.UserID)
	})

	t.Run("expired session is not", func(t *testing.T) {
		_, err := repo.FindActive(u.ID, "expired-hash", now)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	t.Run("wrong user is not", func(t *testing.T) {
		_, err := repo.FindActive(u.ID+1, "live-hash", now)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})
}

func TestRepository_Revoke(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	u := createTestUser(t, db)
	now := time.Now()

	openSession(t, repo, u.ID, "hash-1", time.Hour)

	require.NoError(t, repo.Revoke(u.ID, "hash-1", now))
	_, err := repo.FindActive(u.ID, "hash-1", now)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// Second revoke and revoking a missing record are both no-ops.
	assert.NoError(t, repo.Revoke(u.ID, "hash-1", now))
	assert.NoError(t, repo.Revoke(u.ID, "no-such-hash", now))
}

func TestRepository_DeleteExpired(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	u := createTestUser(t, db)

	openSession(t, repo, u.ID, "live-hash", time.Hour)
	openSession(t, repo, u.ID, "stale-hash-1", -time.Hour)
	openSession(t, repo, u.ID, "stale-hash-2", -2*time.Hour)

	deleted, err := repo.DeleteExpired(time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, err = repo.FindActive(u.ID, "live-hash", time.Now())
	assert.NoError(t, err)
}
