package service

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/print-hub-api/internal/models"
	appErrors "github.com/noah-isme/print-hub-api/pkg/errors"
	"github.com/noah-isme/print-hub-api/pkg/storage"
)

type fileBlobReader interface {
	Open(key string) (*os.File, storage.BlobInfo, error)
	List(prefix string) ([]storage.BlobInfo, error)
}

type fileTokenVerifier interface {
	VerifyKey(token, key string) error
}

// FileService exposes stored uploads to operators and preview links.
type FileService struct {
	blobs            fileBlobReader
	verifier         fileTokenVerifier
	requireSignature bool
	logger           *zap.Logger
}

// NewFileService constructs the file service. When requireSignature is set every Open needs a valid preview token.
func NewFileService(blobs fileBlobReader, verifier fileTokenVerifier, requireSignature bool, logger *zap.Logger) *FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileService{blobs: blobs, verifier: verifier, requireSignature: requireSignature, logger: logger}
}

// List returns every stored file, newest first.
func (s *FileService) List() ([]models.StoredFile, error) {
	blobs, err := s.blobs.List("")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list files")
	}
	files := make([]models.StoredFile, 0, len(blobs))
	for _, b := range blobs {
		files = append(files, models.StoredFile{
			Name:     b.Key,
			Size:     b.Size,
			Modified: b.LastModified.UTC(),
			SizeInMB: fmt.Sprintf("%.2f", float64(b.Size)/(1024*1024)),
		})
	}
	return files, nil
}

// OpenedFile is a readable blob. Callers must Close it.
type OpenedFile struct {
	io.ReadSeekCloser
	Key          string
	Size         int64
	LastModified time.Time
}

// Open returns the blob for key after checking the preview token when one is required or supplied.
func (s *FileService) Open(key, token string) (*OpenedFile, error) {
	if err := storage.ValidateKey(key); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid file key")
	}
	if s.requireSignature || token != "" {
		if s.verifier == nil {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "file signatures are not configured")
		}
		if err := s.verifier.VerifyKey(token, key); err != nil {
			if errors.Is(err, storage.ErrSignatureExpired) {
				return nil, appErrors.Clone(appErrors.ErrForbidden, "file link expired")
			}
			return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid file signature")
		}
	}
	f, info, err := s.blobs.Open(key)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrBlobNotFound):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		case errors.Is(err, storage.ErrInvalidKey):
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid file key")
		}
		s.logger.Error("open file failed", zap.String("key", key), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	return &OpenedFile{ReadSeekCloser: f, Key: info.Key, Size: info.Size, LastModified: info.LastModified}, nil
}
