package http

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
}

func (f *fakeVerifier) Verify(_ context.Context, raw string) (*identity.Claims, error) {
	c, ok := f.tokens[raw]
	if !ok {
		return nil, common.ErrInvalidToken
	}
	return c, nil
}

type memDirectory struct {
	mu       sync.Mutex
	nextUser int64
	nextFile int64
	users    map[int64]*models.User
	files    map[int64]*models.File
	refresh  map[string]int64
}

func newMemDirectory() *memDirectory {
	return &memDirectory{
		users:   map[int64]*models.User{},
		files:   map[int64]*models.File{},
		refresh: map[string]int64{},
	}
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
	d.nextUser++
	u := &models.User{ID: d.nextUser, Email: email, GoogleID: subjectID, IsActive: true}
	d.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (d *memDirectory) setAdmin(email string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.Email == email {
			u.IsAdmin = true
		}
	}
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
		cp := *d.users[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (d *memDirectory) StoreRefreshToken(_ context.Context, userID int64, hash []byte, _ time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refresh[string(hash)] = userID
	return nil
}

func (d *memDirectory) RotateRefreshToken(_ context.Context, oldHash, newHash []byte, _, _ time.Time) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.refresh[string(oldHash)]
	if !ok {
		return nil, common.ErrorUnauthorized
	}
	delete(d.refresh, string(oldHash))
	d.refresh[string(newHash)] = id
	cp := *d.users[id]
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
	d.nextFile++
	cp := *f
	cp.ID = d.nextFile
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
	if _, ok := d.files[id]; !ok {
		return common.ErrorNotFound
	}
	delete(d.files, id)
	return nil
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	writes  int
}

func newMemStore() *memStore { return &memStore{objects: map[string][]byte{}} }

func (s *memStore) Put(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	s.objects[key] = data
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return "", errors.New("NoSuchKey")
	}
	return "https://store.example/containeer/" + key + "?X-Amz-Signature=abc", nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
