package magiclink

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Anvoria/identra/internal/credentials"
	"github.com/Anvoria/identra/internal/domain/user"
)

// MockRepository is a mock implementation of Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(link *MagicLink) error {
	args := m.Called(link)
	return args.Error(0)
}

func (m *MockRepository) CodeExists(code string) (bool, error) {
	args := m.Called(code)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) FindByCode(code string) (*MagicLink, error) {
	args := m.Called(code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*MagicLink), args.Error(1)
}

func (m *MockRepository) Consume(code string, at time.Time) (bool, error) {
	args := m.Called(code, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) InvalidateUnused(userID uint, at time.Time) error {
	args := m.Called(userID, at)
	return args.Error(0)
}

func (m *MockRepository) DeleteExpired(now time.Time) (int64, error) {
	args := m.Called(now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	args := m.Called(cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockUserRepository is a mock implementation of user.Repository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(u *user.User) error {
	args := m.Called(u)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(id uint) (*user.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(email string) (*user.User, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserRepository) FindByUsername(username string) (*user.User, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserRepository) Update(u *user.User) error {
	args := m.Called(u)
	return args.Error(0)
}

// recordingSender captures delivered magic links.
type recordingSender struct {
	to   string
	code string
	url  string
	err  error
}

func (r *recordingSender) SendMagicLink(to, code, verifyURL string) error {
	r.to = to
	r.code = code
	r.url = verifyURL
	return r.err
}

func existingUser(id uint, email string) *user.User {
	u := &user.User{Username: "quiet-otter-117", Email: &email}
	u.ID = id
	return u
}

func TestCreate_ExistingIdentity(t *testing.T) {
	repo := new(MockRepository)
	users := new(MockUserRepository)
	sender := &recordingSender{}
	svc := NewService(repo, users, sender, "https://app.example.com")

	users.On("FindByEmail", "user@example.com").Return(existingUser(4, "user@example.com"), nil)
	repo.On("InvalidateUnused", uint(4), mock.AnythingOfType("time.Time")).Return(nil)
	repo.On("CodeExists", mock.AnythingOfType("string")).Return(false, nil)

	var stored *MagicLink
	repo.On("Create", mock.AnythingOfType("*magiclink.MagicLink")).Run(func(args mock.Arguments) {
		stored = args.Get(0).(*MagicLink)
	}).Return(nil)

	err := svc.Create("User@Example.COM", "/boards/7", "192.0.2.1")
	require.NoError(t, err)

	require.NotNil(t, stored)
	assert.Len(t, stored.Code, credentials.CodeLength)
	assert.Equal(t, uint(4), stored.UserID)
	assert.Equal(t, "/boards/7", stored.ReturnURL)
	assert.Equal(t, "192.0.2.1", stored.RequestIP)
	assert.WithinDuration(t, time.Now().Add(LinkTTL), stored.ExpiresAt, 5*time.Second)
	assert.Nil(t, stored.UsedAt)

	assert.Equal(t, "user@example.com", sender.to)
	assert.Equal(t, stored.Code, sender.code)
	assert.Contains(t, sender.url, stored.Code)

	// Reissue invalidates everything unused before the new code exists.
	repo.AssertCalled(t, "InvalidateUnused", uint(4), mock.AnythingOfType("time.Time"))
}

func TestCreate_UnknownEmailCreatesIdentity(t *testing.T) {
	repo := new(MockRepository)
	users := new(MockUserRepository)
	sender := &recordingSender{}
	svc := NewService(repo, users, sender, "https://app.example.com")

	users.On("FindByEmail", "new@example.com").Return(nil, gorm.ErrRecordNotFound)
	users.On("FindByUsername", mock.AnythingOfType("string")).Return(nil, gorm.ErrRecordNotFound)
	users.On("Create", mock.AnythingOfType("*user.User")).Run(func(args mock.Arguments) {
		args.Get(0).(*user.User).ID = 11
	}).Return(nil)
	users.On("Update", mock.AnythingOfType("*user.User")).Return(nil)

	repo.On("InvalidateUnused", uint(11), mock.AnythingOfType("time.Time")).Return(nil)
	repo.On("CodeExists", mock.AnythingOfType("string")).Return(false, nil)
	repo.On("Create", mock.AnythingOfType("*magiclink.MagicLink")).Return(nil)

	err := svc.Create("new@example.com", "", "192.0.2.1")
	require.NoError(t, err)

	assert.Equal(t, "new@example.com", sender.to)
	users.AssertCalled(t, "Create", mock.AnythingOfType("*user.User"))
}

func TestCreate_InvalidEmail(t *testing.T) {
	svc := NewService(new(MockRepository), new(MockUserRepository), &recordingSender{}, "")

	assert.ErrorIs(t, svc.Create("not-an-email", "", ""), user.ErrInvalidEmail)
	assert.ErrorIs(t, svc.Create("", "", ""), user.ErrInvalidEmail)
}

func TestCreate_CodeExhaustion(t *testing.T) {
	repo := new(MockRepository)
	users := new(MockUserRepository)
	svc := NewService(repo, users, &recordingSender{}, "")

	users.On("FindByEmail", "user@example.com").Return(existingUser(4, "user@example.com"), nil)
	repo.On("InvalidateUnused", uint(4), mock.AnythingOfType("time.Time")).Return(nil)
	// Every candidate collides.
	repo.On("CodeExists", mock.AnythingOfType("string")).Return(true, nil)

	err := svc.Create("user@example.com", "", "")
	assert.ErrorIs(t, err, ErrCodeExhausted)
	repo.AssertNumberOfCalls(t, "CodeExists", 10)
}

func TestVerify(t *testing.T) {
	code := "A1b2C3d4E5f6"

	t.Run("wrong length rejected without store access", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo, new(MockUserRepository), &recordingSender{}, "")

		_, err := svc.Verify("short")
		assert.ErrorIs(t, err, ErrInvalidCode)
		repo.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything)
	})

	t.Run("consume wins exactly once", func(t *testing.T) {
		repo := new(MockRepository)
		users := new(MockUserRepository)
		svc := NewService(repo, users, &recordingSender{}, "")

		repo.On("Consume", code, mock.AnythingOfType("time.Time")).Return(true, nil).Once()
		repo.On("Consume", code, mock.AnythingOfType("time.Time")).Return(false, nil)
		repo.On("FindByCode", code).Return(&MagicLink{Code: code, UserID: 4, ReturnURL: "/boards/7"}, nil)
		users.On("FindByID", uint(4)).Return(existingUser(4, "user@example.com"), nil)
		users.On("Update", mock.AnythingOfType("*user.User")).Return(nil)

		verified, err := svc.Verify(code)
		require.NoError(t, err)
		assert.Equal(t, uint(4), verified.User.ID)
		assert.Equal(t, "/boards/7", verified.ReturnURL)
		assert.True(t, verified.User.EmailVerified, "consuming a link proves the email")

		// Replay of the same code fails.
		_, err = svc.Verify(code)
		assert.ErrorIs(t, err, ErrInvalidCode)
	})

	t.Run("used or expired code", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo, new(MockUserRepository), &recordingSender{}, "")

		repo.On("Consume", code, mock.AnythingOfType("time.Time")).Return(false, nil)

		_, err := svc.Verify(code)
		assert.ErrorIs(t, err, ErrInvalidCode)
	})
}

func TestSweep(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, new(MockUserRepository), &recordingSender{}, "")

	var expiredAt, cutoff time.Time
	repo.On("DeleteExpired", mock.AnythingOfType("time.Time")).Run(func(args mock.Arguments) {
		expiredAt = args.Get(0).(time.Time)
	}).Return(int64(2), nil)
	repo.On("DeleteOlderThan", mock.AnythingOfType("time.Time")).Run(func(args mock.Arguments) {
		cutoff = args.Get(0).(time.Time)
	}).Return(int64(1), nil)

	require.NoError(t, svc.Sweep())

	// The retention cap deletes regardless of use state, 24h behind now.
	assert.WithinDuration(t, expiredAt.Add(-RetentionWindow), cutoff, time.Second)
}

func TestSweep_PropagatesErrors(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, new(MockUserRepository), &recordingSender{}, "")

	repo.On("DeleteExpired", mock.AnythingOfType("time.Time")).Return(int64(0), errors.New("store down"))

	assert.Error(t, svc.Sweep())
}
