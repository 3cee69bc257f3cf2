package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/containeer/internal/common"
	"github.com/dmitrijs2005/containeer/internal/server/identity"
	"github.com/dmitrijs2005/containeer/internal/server/models"
)


type fakeVerifier struct {
	tokens map[string]*identity.Claims
	err    error
}

func (f *fakeVerifier) Verify(_ context.Context, raw string) (*identity.Claims, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.tokens[raw]
	if !ok {
		return nil, common.ErrInvalidToken
	}
	return c, nil
}


type storedRefresh struct {
	userID  int64
	expires time.Time
}

type memDirectory struct {
	mu       sync.Mutex
	nextUser int64
	nextFile int64
	users    map[int64]*models.User
	files    map[int64]*models.File
	refresh  map[string]storedRefresh

	createFileErr error
	deleteFileErr error
}

func newMemDirectory() *memDirectory {
	return &memDirectory{
		users:   map[int64]*models.User{},
		files:   map[int64]*models.File{},
		refresh: map[string]storedRefresh{},
	}
}

func (d *memDirectory) addUser(u models.User) *models.User {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextUser++
	u.ID = d.nextUser
	d.users[u.ID] = &u
	return &u
}

func (d *memDirectory) GetOrCreate(_ context.Context, subjectID, email string) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.GoogleID == subjectID {
			cp := *u
			return &cp, nil
		}
	}
	for _, u := range d.users {
		if u.Email == email {
			return nil, common.ErrEmailTaken
		}
	}
	d.nextUser++
	u := &models.User{ID: d.nextUser, Email: email, GoogleID: subjectID, IsActive: true}
	d.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (d *memDirectory) FindByEmail(_ context.Context, email string) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (d *memDirectory) ListAll(context.Context) ([]*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*models.User, 0, len(d.users))
	for id := int64(1); id <= d.nextUser; id++ {
		if u, ok := d.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (d *memDirectory) StoreRefreshToken(_ context.Context, userID int64, hash []byte, expires time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refresh[string(hash)] = storedRefresh{userID: userID, expires: expires}
	return nil
}

func (d *memDirectory) RotateRefreshToken(_ context.Context, oldHash, newHash []byte, now, expires time.Time) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rt, ok := d.refresh[string(oldHash)]
	if !ok {
		return nil, common.ErrorUnauthorized
	}
	if !now.Before(rt.expires) {
		return nil, common.ErrRefreshTokenExpired
	}
	delete(d.refresh, string(oldHash))
	d.refresh[string(newHash)] = storedRefresh{userID: rt.userID, expires: expires}
	cp := *d.users[rt.userID]
	return &cp, nil
}

func (d *memDirectory) RevokeRefreshToken(_ context.Context, hash []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.refresh, string(hash))
	return nil
}

func (d *memDirectory) CreateFile(_ context.Context, f *models.File) (*models.File, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.createFileErr != nil {
		return nil, d.createFileErr
	}
	d.nextFile++
	cp := *f
	cp.ID = d.nextFile
	cp.CreatedAt = time.Now()
	d.files[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (d *memDirectory) GetFile(_ context.Context, id int64) (*models.File, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.files[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *f
	return &cp, nil
}

func (d *memDirectory) DeleteFile(_ context.Context, id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deleteFileErr != nil {
		return d.deleteFileErr
	}
	if _, ok := d.files[id]; !ok {
		return common.ErrorNotFound
	}
	delete(d.files, id)
	return nil
}


type memStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	writes    int
	putErr    error
	deleteErr error
}

func newMemStore() *memStore { return &memStore{objects: map[string][]byte{}} }

func (s *memStore) Put(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[key] = data
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.objects, key)
	return nil
}

func (s *memStore) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return "", errors.New("NoSuchKey")
	}
	return "https://store.example/containeer/" + key + "?X-Amz-Expires=" + ttl.String(), nil
}

func (s *memStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}
