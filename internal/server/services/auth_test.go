package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/fluma/internal/common"
	"github.com/dmitrijs2005/fluma/internal/dbx"
	"github.com/dmitrijs2005/fluma/internal/server/auth"
	"github.com/dmitrijs2005/fluma/internal/server/models"
	refreshtokensrepo "github.com/dmitrijs2005/fluma/internal/server/repositories/refreshtokens"
	usersrepo "github.com/dmitrijs2005/fluma/internal/server/repositories/users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func expectTx(mock sqlmock.Sqlmock, commit bool) {
	mock.ExpectBegin()
	if commit {
		mock.ExpectCommit()
	} else {
		mock.ExpectRollback()
	}
}

// plainHasher keeps tests fast; argon2id is covered in the auth package.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", auth.ErrEmptyPassword
	}
	return "plain:" + password, nil
}

func (plainHasher) Verify(password, encodedHash string) (bool, error) {
	return "plain:"+password == encodedHash, nil
}

type memUsersRepo struct {
	mu        sync.Mutex
	byName    map[string]*models.User
	existsErr error
	createErr error
}

func (r *memUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	if _, ok := r.byName[u.UserName]; ok {
		return nil, common.ErrorAlreadyExists
	}
	cp := *u
	cp.ID = uuid.NewString()
	cp.CreatedAt = time.Now()
	r.byName[u.UserName] = &cp
	return &cp, nil
}

func (r *memUsersRepo) ExistsByUsername(ctx context.Context, userName string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.existsErr != nil {
		return false, r.existsErr
	}
	_, ok := r.byName[userName]
	return ok, nil
}

func (r *memUsersRepo) GetUserByLogin(ctx context.Context, userName string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byName[userName]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

type memRefreshRepo struct {
	mu      sync.Mutex
	byUser  map[string]*models.RefreshToken
	saveErr error
	findErr error
	delErr  error
}

func (r *memRefreshRepo) Save(ctx context.Context, userID, token string, expires time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.byUser[userID] = &models.RefreshToken{UserID: userID, Token: token, Expires: expires}
	return nil
}

func (r *memRefreshRepo) FindByUserID(ctx context.Context, userID string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	t, ok := r.byUser[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return t, nil
}

func (r *memRefreshRepo) DeleteByUserID(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.delErr != nil {
		return r.delErr
	}
	delete(r.byUser, userID)
	return nil
}

type memRepoManager struct {
	u *memUsersRepo
	r *memRefreshRepo
}

func newMemRepoManager() *memRepoManager {
	return &memRepoManager{
		u: &memUsersRepo{byName: map[string]*models.User{}},
		r: &memRefreshRepo{byUser: map[string]*models.RefreshToken{}},
	}
}

func (m *memRepoManager) RunMigrations(context.Context, *sql.DB) error           { return nil }
func (m *memRepoManager) Users(db dbx.DBTX) usersrepo.Repository                 { return m.u }
func (m *memRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository { return m.r }

type fixture struct {
	svc    *AuthService
	mock   sqlmock.Sqlmock
	rm     *memRepoManager
	tokens *auth.JWTProvider
}

func newFixture(t *testing.T, accessTTL, refreshTTL time.Duration) *fixture {
	t.Helper()
	db, mock := newSQLMockDB(t)
	rm := newMemRepoManager()
	tokens := auth.NewJWTProvider([]byte("test-secret"), accessTTL, refreshTTL)
	authn := auth.NewPasswordAuthenticator(db, rm.Users, plainHasher{})
	return &fixture{
		svc:    NewAuthService(db, rm, plainHasher{}, authn, tokens),
		mock:   mock,
		rm:     rm,
		tokens: tokens,
	}
}

func (f *fixture) signupAndLogin(t *testing.T, name, password string) *models.TokenPair {
	t.Helper()
	expectTx(f.mock, true)
	_, err := f.svc.Signup(context.Background(), name, password, "")
	require.NoError(t, err)

	expectTx(f.mock, true)
	pair, err := f.svc.Login(context.Background(), name, password)
	require.NoError(t, err)
	return pair
}

// --- Signup ---

func TestSignup_Success(t *testing.T) {
	f := newFixture(t, time.Hour, 24*time.Hour)
	expectTx(f.mock, true)

	got, err := f.svc.Signup(context.Background(), "alice", "pw1", "Al")
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "alice", got.UserName)
	assert.Equal(t, "Al", got.Nickname)
	assert.Equal(t, models.AuthorityUser, got.Authority)

	stored := f.rm.u.byName["alice"]
	require.NotNil(t, stored)
	assert.Equal(t, "plain:pw1", stored.PasswordHash)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSignup_NicknameDefaultsToUserName(t *testing.T) {
	f := newFixture(t, time.Hour, 24*time.Hour)
	expectTx(f.mock, true)

	got, err := f.svc.Signup(context.Background(), "bob", "pw1", "  ")
	require.NoError(t, err)
	assert.Equal(t, "bob", got.Nickname)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSignup_Duplicate(t *testing.T) {
	f := newFixture(t, time.Hour, 24*time.Hour)
	expectTx(f.mock, true)
	_, err := f.svc.Signup(context.Background(), "alice", "pw1", "")
	require.NoError(t, err)

	expectTx(f.mock, false)
	_, err = f.svc.Signup(context.Background(), "alice", "something-else", "other nick")
	assert.ErrorIs(t, err, common.ErrDuplicateUser)
	assert.Equal(t, "plain:pw1", f.rm.u.byName["alice"].PasswordHash)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSignup_LostInsertRace(t *testing.T) {
	f := newFixture(t, time.Hour, 24*time.Hour)
	f.rm.u.createErr = common.ErrorAlreadyExists
	expectTx(f.mock, false)

	_, err := f.svc.Signup(context.Background(), "alice", "pw", "")
	assert.ErrorIs(t, err, common.ErrDuplicateUser)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSignup_Validation(t *testing.T) {
	f := newFixture(t, time.Hour, 24*time.Hour)

	for name, in := range map[string][2]string{
		"empty username": {"", "pw"},
		"blank username": {"   ", "pw"},
		"empty password": {"alice", ""},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Signup(context.Background(), in[0], in[1], "")
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSignup_RepoErrors(t *testing.T) {
	f := newFixture(t, time.Hour, 24*time.Hour)
	f.rm.u.existsErr = errBoom{}
	expectTx(f.mock, false)

	_, err := f.svc.Signup(context.Background(), "alice", "pw", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom{})
	assert.ErrorIs(t, err, common.ErrorInternal)
	assert.Contains(t, err.Error(), "error checking username")

	f.rm.u.existsErr = nil
	f.rm.u.createErr = errBoom{}
	expectTx(f.mock, false)

	_, err = f.svc.Signup(context.Background(), "alice", "pw", "")
	assert.ErrorIs(t, err, common.ErrorInternal)
	assert.Contains(t, err.Error(), "error creating user: boom")
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSignup_BeginFails(t *testing.T) {
	f := newFixture(t, time.Hour, 24*time.Hour)
	f.mock.ExpectBegin().WillReturnError(errBoom{})

	_, err := f.svc.Signup(context.Background(), "alice", "pw", "")
	assert.ErrorIs(t, err, errBoom{})
	assert.Empty(t, f.rm.u.byName)
}

// --- Login ---

func TestLogin_PersistsRefreshToken(t *testing.T) {
	f := newFixture(t, time.Hour, 24*time.Hour)
	pair := f.signupAndLogin(t, "alice", "pw1")

	assert.Equal(t, common.GrantTypeBearer, pair.GrantType)
	assert.NotEmpty(t, pair.AccessToken)

	userID := f.rm.u.byName["alice"].ID
	stored, err := f.rm.r.FindByUserID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, pair.RefreshToken, stored.Token)
	assert.Equal(t, pair.RefreshTokenExpires, stored.Expires)

	p, err := f.tokens.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, userID, p.UserID)
	assert.Equal(t, models.AuthorityUser, p.Authority)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestLogin_OverwritesPreviousRefreshToken(t *testing.T) {
	f := newFixture(t, time.Hour, 24*time.Hour)
	first := f.signupAndLogin(t, "alice", "pw1")

	expectTx(f.mock, true)
	second, err := f.svc.Login(context.Background(), "alice", "pw1")
	require.NoError(t, err)

	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Len(t, f.rm.r.byUser, 1)
	assert.Equal(t, second.RefreshToken, f.rm.r.byUser[f.rm.u.byName["alice"].ID].Token)
}

func TestLogin_BadCredentials(t *testing.T) {
	f := newFixture(t, time.Hour, 24*time.Hour)
	expectTx(f.mock, true)
	_, err := f.svc.Signup(context.Background(), "alice", "pw1", "")
	require.NoError(t, err)

	expectTx(f.mock, false)
	_, err = f.svc.Login(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	expectTx(f.mock, false)
	_, err = f.svc.Login(context.Background(), "nobody", "pw1")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	assert.Empty(t, f.rm.r.byUser)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestLogin_SaveFails(t *testing.T) {
	f := newFixture(t, time.Hour, 24*time.Hour)
	expectTx(f.mock, true)
	_, err := f.svc.Signup(context.Background(), "alice", "pw1", "")
	require.NoError(t, err)

	f.rm.r.saveErr = errBoom{}
	expectTx(f.mock, false)
	_, err = f.svc.Login(context.Background(), "alice", "pw1")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrorInternal)
	assert.Contains(t, err.Error(), "error saving refresh token: boom")
	require.NoError(t, f.mock.ExpectationsWereMet())
}

// --- Reissue ---

func TestReissue_RotatesRefreshToken(t *testing.T) {
	f := newFixture(t, time.Hour, 24*time.Hour)
	first := f.signupAndLogin(t, "alice", "pw1")

	expectTx(f.mock, true)
	second, err := f.svc.Reissue(context.Background(), first.AccessToken, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, second.RefreshToken, f.rm.r.byUser[f.rm.u.byName["alice"].ID].Token)

	expectTx(f.mock, false)
	_, err = f.svc.Reissue(context.Background(), first.AccessToken, first.RefreshToken)
	assert.ErrorIs(t, err, common.ErrTokenMismatch)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReissue_AcceptsExpiredAccessToken(t *testing.T) {
	f := newFixture(t, -time.Minute, 24*time.Hour)
	pair := f.signupAndLogin(t, "alice", "pw1")

	_, err := f.tokens.ValidateAccessToken(pair.AccessToken)
	require.ErrorIs(t, err, common.ErrTokenExpired)

	expectTx(f.mock, true)
	_, err = f.svc.Reissue(context.Background(), pair.AccessToken, pair.RefreshToken)
	require.NoError(t, err)
}

func TestReissue_WithoutLogin(t *testing.T) {
	f := newFixture(t, time.Hour, 24*time.Hour)
	pair, err := f.tokens.GenerateTokenPair(&models.Principal{UserID: "ghost"})
	require.NoError(t, err)

	expectTx(f.mock, false)
	_, err = f.svc.Reissue(context.Background(), pair.AccessToken, pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrLoggedOut)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReissue_DifferentValidRefreshToken(t *testing.T) {
	f := newFixture(t, time.Hour, 24*time.Hour)
	pair := f.signupAndLogin(t, "alice", "pw1")

	other, err := f.tokens.GenerateTokenPair(&models.Principal{UserID: "someone-else"})
	require.NoError(t, err)

	expectTx(f.mock, false)
	_, err = f.svc.Reissue(context.Background(), pair.AccessToken, other.RefreshToken)
	assert.ErrorIs(t, err, common.ErrTokenMismatch)
	assert.Equal(t, pair.RefreshToken, f.rm.r.byUser[f.rm.u.byName["alice"].ID].Token)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReissue_ExpiredRefreshToken(t *testing.T) {
	f := newFixture(t, time.Hour, -time.Minute)
	pair := f.signupAndLogin(t, "alice", "pw1")
	before := f.rm.r.byUser[f.rm.u.byName["alice"].ID].Token

	_, err := f.svc.Reissue(context.Background(), pair.AccessToken, pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrRefreshTokenExpired)
	assert.Equal(t, before, f.rm.r.byUser[f.rm.u.byName["alice"].ID].Token)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReissue_InvalidTokens(t *testing.T) {
	f := newFixture(t, time.Hour, 24*time.Hour)
	pair := f.signupAndLogin(t, "alice", "pw1")

	_, err := f.svc.Reissue(context.Background(), pair.AccessToken, "garbage")
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	_, err = f.svc.Reissue(context.Background(), "garbage", pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	_, err = f.svc.Reissue(context.Background(), pair.RefreshToken, pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReissue_RefreshTokenCheckedFirst(t *testing.T) {
	f := newFixture(t, time.Hour, -time.Minute)
	pair, err := f.tokens.GenerateTokenPair(&models.Principal{UserID: "u1"})
	require.NoError(t, err)

	_, err = f.svc.Reissue(context.Background(), "garbage", pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrRefreshTokenExpired)
}

func TestReissue_FindFails(t *testing.T) {
	f := newFixture(t, time.Hour, 24*time.Hour)
	pair := f.signupAndLogin(t, "alice", "pw1")
	f.rm.r.findErr = errBoom{}

	expectTx(f.mock, false)
	_, err := f.svc.Reissue(context.Background(), pair.AccessToken, pair.RefreshToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errBoom{}))
	assert.ErrorIs(t, err, common.ErrorInternal)
	assert.Contains(t, err.Error(), "error searching refresh token")
}

// --- Logout ---

func TestLogout_ThenReissueFails(t *testing.T) {
	f := newFixture(t, time.Hour, 24*time.Hour)
	pair := f.signupAndLogin(t, "alice", "pw1")
	userID := f.rm.u.byName["alice"].ID

	require.NoError(t, f.svc.Logout(context.Background(), userID))
	require.NoError(t, f.svc.Logout(context.Background(), userID))

	expectTx(f.mock, false)
	_, err := f.svc.Reissue(context.Background(), pair.AccessToken, pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrLoggedOut)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestLogout_RepoError(t *testing.T) {
	f := newFixture(t, time.Hour, 24*time.Hour)
	f.rm.r.delErr = errBoom{}

	err := f.svc.Logout(context.Background(), "u1")
	assert.ErrorIs(t, err, errBoom{})
}

// --- end to end ---

func TestAliceWalkthrough(t *testing.T) {
	f := newFixture(t, time.Hour, 24*time.Hour)
	ctx := context.Background()

	expectTx(f.mock, true)
	_, err := f.svc.Signup(ctx, "alice", "pw1", "")
	require.NoError(t, err)

	expectTx(f.mock, false)
	_, err = f.svc.Signup(ctx, "alice", "pw2", "")
	require.ErrorIs(t, err, common.ErrDuplicateUser)

	expectTx(f.mock, true)
	p1, err := f.svc.Login(ctx, "alice", "pw1")
	require.NoError(t, err)

	expectTx(f.mock, true)
	p2, err := f.svc.Reissue(ctx, p1.AccessToken, p1.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, p1.RefreshToken, p2.RefreshToken)

	expectTx(f.mock, false)
	_, err = f.svc.Reissue(ctx, p1.AccessToken, p1.RefreshToken)
	require.ErrorIs(t, err, common.ErrTokenMismatch)

	require.NoError(t, f.mock.ExpectationsWereMet())
}
