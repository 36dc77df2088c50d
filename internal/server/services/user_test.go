package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/registryauth/internal/common"
	"github.com/dmitrijs2005/registryauth/internal/dbx"
	"github.com/dmitrijs2005/registryauth/internal/server/auth"
	"github.com/dmitrijs2005/registryauth/internal/server/config"
	"github.com/dmitrijs2005/registryauth/internal/server/models"
	logsrepo "github.com/dmitrijs2005/registryauth/internal/server/repositories/logs"
	usersrepo "github.com/dmitrijs2005/registryauth/internal/server/repositories/users"
)

// --- helpers ---

const testSecret = "k"

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func newUserService(t *testing.T, db *sql.DB, u *fakeUsersRepo) *UserService {
	t.Helper()
	cfg := &config.Config{
		SecretKey:                    testSecret,
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
	}
	return NewUserService(db, &fakeRepoManager{u: u}, cfg)
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	h, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	return h
}

// --- fakes ---

type fakeUsersRepo struct {
	createOut *models.User
	createErr error

	getOut *models.User
	getErr error

	createCalls int
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createOut, nil
}

func (f *fakeUsersRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository       { return m.u }
func (m *fakeRepoManager) Logs(db dbx.DBTX) logsrepo.Repository         { return nil }

// --- Register ---

func TestRegister_Success(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	created := &models.User{ID: "u1", Username: "alice", IsActive: true, Role: "user"}
	repo := &fakeUsersRepo{getErr: common.ErrNotFound, createOut: created}
	s := newUserService(t, db, repo)

	got, err := s.Register(context.Background(), "alice", "pw123")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if got.ID != "u1" || got.Username != "alice" || !got.IsActive || got.Role != "user" {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestRegister_AlreadyExists_Precheck(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repo := &fakeUsersRepo{getOut: &models.User{ID: "u1", Username: "alice"}}
	s := newUserService(t, db, repo)

	_, err := s.Register(context.Background(), "alice", "pw123")
	if !errors.Is(err, common.ErrAlreadyExists) {
		t.Fatalf("want common.ErrAlreadyExists, got %v", err)
	}
	if repo.createCalls != 0 {
		t.Fatalf("Create must not be called after the pre-check hit, got %d calls", repo.createCalls)
	}
}

func TestRegister_AlreadyExists_InsertRace(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	// the pre-check misses but a concurrent registration wins the insert,
	// so the store reports a unique violation
	repo := &fakeUsersRepo{getErr: common.ErrNotFound, createErr: common.ErrAlreadyExists}
	s := newUserService(t, db, repo)

	_, err := s.Register(context.Background(), "alice", "pw123")
	if !errors.Is(err, common.ErrAlreadyExists) {
		t.Fatalf("want common.ErrAlreadyExists, got %v", err)
	}
}

func TestRegister_StoreError(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repo := &fakeUsersRepo{getErr: errors.New("db down")}
	s := newUserService(t, db, repo)

	_, err := s.Register(context.Background(), "alice", "pw123")
	if err == nil || errors.Is(err, common.ErrAlreadyExists) {
		t.Fatalf("expected an infrastructure error, got %v", err)
	}
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repo := &fakeUsersRepo{getOut: &models.User{
		ID: "u1", Username: "alice", PasswordHash: mustHash(t, "pw123"), IsActive: true, Role: "user",
	}}
	s := newUserService(t, db, repo)

	pair, err := s.Login(context.Background(), "alice", "pw123")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("empty tokens: %+v", pair)
	}

	// both tokens carry the subject, each under its own kind
	if sub, err := auth.SubjectFromToken(pair.AccessToken, auth.TokenKindAccess, []byte(testSecret)); err != nil || sub != "alice" {
		t.Fatalf("access token: subject %q, err %v", sub, err)
	}
	if sub, err := auth.SubjectFromToken(pair.RefreshToken, auth.TokenKindRefresh, []byte(testSecret)); err != nil || sub != "alice" {
		t.Fatalf("refresh token: subject %q, err %v", sub, err)
	}
}

func TestLogin_WrongPasswordAndUnknownUser_SameError(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	withUser := &fakeUsersRepo{getOut: &models.User{
		Username: "alice", PasswordHash: mustHash(t, "pw123"), IsActive: true,
	}}
	_, errWrongPassword := newUserService(t, db, withUser).Login(context.Background(), "alice", "nope")

	withoutUser := &fakeUsersRepo{getErr: common.ErrNotFound}
	_, errUnknownUser := newUserService(t, db, withoutUser).Login(context.Background(), "ghost", "pw123")

	if !errors.Is(errWrongPassword, common.ErrInvalidCredentials) {
		t.Fatalf("wrong password: want common.ErrInvalidCredentials, got %v", errWrongPassword)
	}
	if !errors.Is(errUnknownUser, common.ErrInvalidCredentials) {
		t.Fatalf("unknown user: want common.ErrInvalidCredentials, got %v", errUnknownUser)
	}
	// identical outward shape, no username enumeration
	if errWrongPassword.Error() != errUnknownUser.Error() {
		t.Fatalf("outcomes differ: %q vs %q", errWrongPassword, errUnknownUser)
	}
}

func TestLogin_InactiveUser(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repo := &fakeUsersRepo{getOut: &models.User{
		Username: "alice", PasswordHash: mustHash(t, "pw123"), IsActive: false,
	}}
	s := newUserService(t, db, repo)

	_, err := s.Login(context.Background(), "alice", "pw123")
	if !errors.Is(err, common.ErrInvalidCredentials) {
		t.Fatalf("want common.ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_StoreError(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repo := &fakeUsersRepo{getErr: errors.New("db down")}
	s := newUserService(t, db, repo)

	_, err := s.Login(context.Background(), "alice", "pw123")
	if !errors.Is(err, common.ErrInternal) {
		t.Fatalf("want common.ErrInternal, got %v", err)
	}
}

// --- RefreshTokens ---

func refreshTokenFor(t *testing.T, subject string, secret string, validity time.Duration) string {
	t.Helper()
	tok, err := auth.GenerateToken(subject, auth.TokenKindRefresh, []byte(secret), validity)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	return tok
}

func TestRefreshTokens_Success_RotatesPair(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repo := &fakeUsersRepo{getOut: &models.User{Username: "alice", IsActive: true}}
	s := newUserService(t, db, repo)

	old := refreshTokenFor(t, "alice", testSecret, time.Hour)

	pair, err := s.RefreshTokens(context.Background(), old)
	if err != nil {
		t.Fatalf("RefreshTokens error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("empty tokens: %+v", pair)
	}
	if pair.RefreshToken == old {
		t.Fatal("refresh token must rotate")
	}
}

func TestRefreshTokens_Expired(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repo := &fakeUsersRepo{getOut: &models.User{Username: "alice", IsActive: true}}
	s := newUserService(t, db, repo)

	expired := refreshTokenFor(t, "alice", testSecret, -time.Minute)

	_, err := s.RefreshTokens(context.Background(), expired)
	if !errors.Is(err, common.ErrInvalidRefreshToken) {
		t.Fatalf("want common.ErrInvalidRefreshToken, got %v", err)
	}
}

func TestRefreshTokens_WrongSecret(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repo := &fakeUsersRepo{getOut: &models.User{Username: "alice", IsActive: true}}
	s := newUserService(t, db, repo)

	forged := refreshTokenFor(t, "alice", "other-secret", time.Hour)

	_, err := s.RefreshTokens(context.Background(), forged)
	if !errors.Is(err, common.ErrInvalidRefreshToken) {
		t.Fatalf("want common.ErrInvalidRefreshToken, got %v", err)
	}
}

func TestRefreshTokens_AccessTokenRejected(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repo := &fakeUsersRepo{getOut: &models.User{Username: "alice", IsActive: true}}
	s := newUserService(t, db, repo)

	access, err := auth.GenerateToken("alice", auth.TokenKindAccess, []byte(testSecret), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	_, err = s.RefreshTokens(context.Background(), access)
	if !errors.Is(err, common.ErrInvalidRefreshToken) {
		t.Fatalf("want common.ErrInvalidRefreshToken, got %v", err)
	}
}

func TestRefreshTokens_DeletedUser(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repo := &fakeUsersRepo{getErr: common.ErrNotFound}
	s := newUserService(t, db, repo)

	tok := refreshTokenFor(t, "alice", testSecret, time.Hour)

	_, err := s.RefreshTokens(context.Background(), tok)
	if !errors.Is(err, common.ErrInvalidRefreshToken) {
		t.Fatalf("want common.ErrInvalidRefreshToken, got %v", err)
	}
}

func TestRefreshTokens_InactiveUser(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repo := &fakeUsersRepo{getOut: &models.User{Username: "alice", IsActive: false}}
	s := newUserService(t, db, repo)

	tok := refreshTokenFor(t, "alice", testSecret, time.Hour)

	_, err := s.RefreshTokens(context.Background(), tok)
	if !errors.Is(err, common.ErrInvalidRefreshToken) {
		t.Fatalf("want common.ErrInvalidRefreshToken, got %v", err)
	}
}

// --- GetActiveUser ---

func TestGetActiveUser(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	tests := []struct {
		name    string
		repo    *fakeUsersRepo
		wantErr error
	}{
		{"active", &fakeUsersRepo{getOut: &models.User{Username: "alice", IsActive: true}}, nil},
		{"inactive", &fakeUsersRepo{getOut: &models.User{Username: "alice", IsActive: false}}, common.ErrNotFound},
		{"missing", &fakeUsersRepo{getErr: common.ErrNotFound}, common.ErrNotFound},
		{"store error", &fakeUsersRepo{getErr: errors.New("db down")}, common.ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newUserService(t, db, tt.repo)
			user, err := s.GetActiveUser(context.Background(), "alice")
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("GetActiveUser error: %v", err)
				}
				if user.Username != "alice" {
					t.Fatalf("unexpected user: %+v", user)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("want %v, got %v", tt.wantErr, err)
			}
		})
	}
}
