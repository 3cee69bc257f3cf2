package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/containeer/internal/common"
	"github.com/dmitrijs2005/containeer/internal/logging"
	"github.com/dmitrijs2005/containeer/internal/server/authz"
	"github.com/dmitrijs2005/containeer/internal/server/models"
	"go.opentelemetry.io/otel/attribute"
)

// FileService keeps the invariant that a file record exists only while its
// object exists in the store.
type FileService struct {
	directory FileDirectory
	broker    ResourceBroker
	logger    logging.Logger
}

func NewFileService(d FileDirectory, b ResourceBroker, logger logging.Logger) *FileService {
	return &FileService{directory: d, broker: b, logger: logger.With("module", "files")}
}

// Upload stores data and records it as owned by caller. If the record cannot
// be written the object is removed again.
func (s *FileService) Upload(ctx context.Context, caller *models.User, filename string, data []byte) (file *models.File, err error) {
	ctx, span := tracer.Start(ctx, "FileService.Upload")
	defer func() { endSpan(span, err) }()

	key, err := s.broker.Store(ctx, data, filename)
	if err != nil {
		return nil, err
	}

	file, err = s.directory.CreateFile(ctx, &models.File{Filename: filename, StorageKey: key, OwnerID: caller.ID})
	if err != nil {
		// The request may already be cancelled; the cleanup must still run.
		if delErr := s.broker.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.logger.Error(ctx, "orphaned object after failed insert", "key", key, "error", delErr)
		}
		return nil, fmt.Errorf("%w: record file: %v", common.ErrorInternal, err)
	}

	span.SetAttributes(attribute.Int64("file.id", file.ID))
	s.logger.Info(ctx, "file uploaded", "file_id", file.ID, "owner_id", caller.ID)
	return file, nil
}

// Grant returns a read URL for file id after the owner-or-admin check.
func (s *FileService) Grant(ctx context.Context, caller *models.User, id int64) (url string, err error) {
	ctx, span := tracer.Start(ctx, "FileService.Grant")
	defer func() { endSpan(span, err) }()

	file, err := s.directory.GetFile(ctx, id)
	if err != nil {
		return "", err
	}
	if err := authz.Check(caller, file.OwnerID); err != nil {
		return "", err
	}
	return s.broker.IssueReadGrant(ctx, file.StorageKey, 0)
}

// Delete removes the object first and the record second. A failed object
// delete leaves the record in place so the call can be retried.
func (s *FileService) Delete(ctx context.Context, caller *models.User, id int64) (err error) {
	ctx, span := tracer.Start(ctx, "FileService.Delete")
	defer func() { endSpan(span, err) }()

	file, err := s.directory.GetFile(ctx, id)
	if err != nil {
		return err
	}
	if err := authz.Check(caller, file.OwnerID); err != nil {
		return err
	}
	if err := s.broker.Delete(ctx, file.StorageKey); err != nil {
		return err
	}
	if err := s.directory.DeleteFile(ctx, id); err != nil {
		s.logger.Error(ctx, "object removed but record kept", "file_id", id, "storage_key", file.StorageKey, "error", err)
		return err
	}
	s.logger.Info(ctx, "file deleted", "file_id", id, "by", caller.ID)
	return nil
}
