package directory

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/containeer/internal/common"
	"github.com/dmitrijs2005/containeer/internal/dbx"
	"github.com/dmitrijs2005/containeer/internal/logging"
	"github.com/dmitrijs2005/containeer/internal/server/models"
	"github.com/dmitrijs2005/containeer/internal/server/repositories/files"
	"github.com/dmitrijs2005/containeer/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/containeer/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/containeer/internal/server/repositories/users"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userCols = []string{"id", "email", "google_id", "is_active", "is_admin", "created_at"}

const (
	selectByGoogleQ = `(?s)^SELECT\s+id,.*FROM\s+users\s+WHERE\s+google_id\s*=\s*\$1$`
	selectByEmailQ  = `(?s)^SELECT\s+id,.*FROM\s+users\s+WHERE\s+email\s*=\s*\$1$`
	selectByIDQ     = `(?s)^SELECT\s+id,.*FROM\s+users\s+WHERE\s+id\s*=\s*\$1$`
	insertUserQ     = `(?s)^INSERT\s+INTO\s+users\b.*ON\s+CONFLICT\s*\(google_id\)\s*DO\s+NOTHING.*$`
	findTokenQ      = `(?s)^SELECT\s+id,\s*user_id,.*FROM\s+refresh_tokens\s+WHERE\s+token_hash\s*=\s*\$1$`
	deleteTokenQ    = `(?s)^DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+token_hash\s*=\s*\$1$`
	insertTokenQ    = `(?s)^INSERT\s+INTO\s+refresh_tokens\b.*$`
)

func newMockDirectory(t *testing.T) (*Directory, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, repomanager.NewPostgresRepositoryManager(), time.Second, logging.Discard()), mock
}

func TestGetOrCreate_ExistingUser(t *testing.T) {
	d, mock := newMockDirectory(t)

	mock.ExpectQuery(selectByGoogleQ).
		WithArgs("sub123").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(int64(1), "user@x.com", "sub123", true, false, time.Now()))

	u, err := d.GetOrCreate(context.Background(), "sub123", "user@x.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreate_CreatesActiveNonAdmin(t *testing.T) {
	d, mock := newMockDirectory(t)

	mock.ExpectQuery(selectByGoogleQ).WithArgs("sub123").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(insertUserQ).
		WithArgs("user@x.com", "sub123", true, false).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(int64(1), "user@x.com", "sub123", true, false, time.Now()))

	u, err := d.GetOrCreate(context.Background(), "sub123", "user@x.com")
	require.NoError(t, err)
	assert.True(t, u.IsActive)
	assert.False(t, u.IsAdmin)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreate_LostRaceReturnsWinner(t *testing.T) {
	d, mock := newMockDirectory(t)

	mock.ExpectQuery(selectByGoogleQ).WithArgs("sub123").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(insertUserQ).
		WithArgs("user@x.com", "sub123", true, false).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(selectByGoogleQ).
		WithArgs("sub123").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(int64(9), "user@x.com", "sub123", true, false, time.Now()))

	u, err := d.GetOrCreate(context.Background(), "sub123", "user@x.com")
	require.NoError(t, err)
	assert.Equal(t, int64(9), u.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreate_EmailTaken(t *testing.T) {
	d, mock := newMockDirectory(t)

	mock.ExpectQuery(selectByGoogleQ).WithArgs("sub999").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(insertUserQ).
		WithArgs("user@x.com", "sub999", true, false).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := d.GetOrCreate(context.Background(), "sub999", "user@x.com")
	assert.ErrorIs(t, err, common.ErrEmailTaken)
}

func TestGetOrCreate_GivesUp(t *testing.T) {
	d, mock := newMockDirectory(t)

	for i := 0; i < maxCreateAttempts; i++ {
		mock.ExpectQuery(selectByGoogleQ).WithArgs("sub123").WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(insertUserQ).WithArgs("user@x.com", "sub123", true, false).WillReturnError(sql.ErrNoRows)
	}

	_, err := d.GetOrCreate(context.Background(), "sub123", "user@x.com")
	assert.ErrorIs(t, err, common.ErrorInternal)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreate_LookupError(t *testing.T) {
	d, mock := newMockDirectory(t)

	mock.ExpectQuery(selectByGoogleQ).WithArgs("sub123").WillReturnError(errors.New("conn reset"))

	_, err := d.GetOrCreate(context.Background(), "sub123", "user@x.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup user")
}

func TestFindByEmail(t *testing.T) {
	d, mock := newMockDirectory(t)

	mock.ExpectQuery(selectByEmailQ).WithArgs("ghost@x.com").WillReturnError(sql.ErrNoRows)

	_, err := d.FindByEmail(context.Background(), "ghost@x.com")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRotateRefreshToken_Success(t *testing.T) {
	d, mock := newMockDirectory(t)
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	oldHash, newHash := []byte("old"), []byte("new")

	mock.ExpectBegin()
	mock.ExpectQuery(findTokenQ).
		WithArgs(oldHash).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "created_at"}).
			AddRow(int64(1), int64(7), oldHash, now.Add(time.Hour), now.Add(-time.Hour)))
	mock.ExpectExec(deleteTokenQ).WithArgs(oldHash).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(selectByIDQ).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(int64(7), "user@x.com", "sub123", true, false, now))
	mock.ExpectExec(insertTokenQ).WithArgs(int64(7), newHash, now.Add(24*time.Hour)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	u, err := d.RotateRefreshToken(context.Background(), oldHash, newHash, now, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "user@x.com", u.Email)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRotateRefreshToken_Unknown(t *testing.T) {
	d, mock := newMockDirectory(t)

	mock.ExpectBegin()
	mock.ExpectQuery(findTokenQ).WithArgs([]byte("old")).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := d.RotateRefreshToken(context.Background(), []byte("old"), []byte("new"), time.Now(), time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRotateRefreshToken_Expired(t *testing.T) {
	d, mock := newMockDirectory(t)
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(findTokenQ).
		WithArgs([]byte("old")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "created_at"}).
			AddRow(int64(1), int64(7), []byte("old"), now, now.Add(-time.Hour)))
	mock.ExpectRollback()

	_, err := d.RotateRefreshToken(context.Background(), []byte("old"), []byte("new"), now, now.Add(time.Hour))
	assert.ErrorIs(t, err, common.ErrRefreshTokenExpired)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRotateRefreshToken_ConsumedConcurrently(t *testing.T) {
	d, mock := newMockDirectory(t)
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(findTokenQ).
		WithArgs([]byte("old")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "created_at"}).
			AddRow(int64(1), int64(7), []byte("old"), now.Add(time.Hour), now))
	mock.ExpectExec(deleteTokenQ).WithArgs([]byte("old")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := d.RotateRefreshToken(context.Background(), []byte("old"), []byte("new"), now, now.Add(time.Hour))
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeRefreshToken_IgnoresUnknown(t *testing.T) {
	d, mock := newMockDirectory(t)

	mock.ExpectExec(deleteTokenQ).WithArgs([]byte("gone")).WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, d.RevokeRefreshToken(context.Background(), []byte("gone")))
}

func TestFileRecords(t *testing.T) {
	d, mock := newMockDirectory(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+files\b.*$`).
		WithArgs("scan.ply", "k.ply", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), now))
	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*filename.*FROM\s+files\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "filename", "s3_key", "owner_id", "created_at"}).
			AddRow(int64(1), "scan.ply", "k.ply", int64(1), now))
	mock.ExpectExec(`^DELETE\s+FROM\s+files\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	f, err := d.CreateFile(context.Background(), &models.File{Filename: "scan.ply", StorageKey: "k.ply", OwnerID: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.ID)

	got, err := d.GetFile(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "k.ply", got.StorageKey)

	require.NoError(t, d.DeleteFile(context.Background(), 1))
	require.NoError(t, mock.ExpectationsWereMet())
}

// memUsers emulates the users table with its unique google_id index.
type memUsers struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string]*models.User
}

func (m *memUsers) CreateIfAbsent(_ context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[u.GoogleID]; ok {
		return nil, common.ErrorAlreadyExists
	}
	m.nextID++
	cp := *u
	cp.ID = m.nextID
	m.rows[u.GoogleID] = &cp
	return &cp, nil
}

func (m *memUsers) GetByID(context.Context, int64) (*models.User, error) {
	return nil, common.ErrorNotFound
}

func (m *memUsers) GetByGoogleID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.rows[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, common.ErrorNotFound
}

func (m *memUsers) GetByEmail(context.Context, string) (*models.User, error) {
	return nil, common.ErrorNotFound
}

func (m *memUsers) List(context.Context) ([]*models.User, error) { return nil, nil }

type memManager struct{ users *memUsers }

func (m *memManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *memManager) Users(dbx.DBTX) users.Repository { return m.users }
func (m *memManager) Files(dbx.DBTX) files.Repository { return nil }
func (m *memManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return nil }

func TestGetOrCreate_ConcurrentSameSubjectYieldsOneUser(t *testing.T) {
	store := &memUsers{rows: map[string]*models.User{}}
	d := New(nil, &memManager{users: store}, 0, logging.Discard())

	const callers = 16
	ids := make([]int64, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := d.GetOrCreate(context.Background(), "sub123", "user@x.com")
			if assert.NoError(t, err) {
				ids[i] = u.ID
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, store.rows, 1)
	for _, id := range ids {
		assert.Equal(t, int64(1), id)
	}
}
