package service

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/print-hub-api/pkg/errors"
	"github.com/noah-isme/print-hub-api/pkg/storage"
)

func newFileFixture(t *testing.T, requireSignature bool) (*FileService, *storage.BlobStore, *storage.SignedURLSigner) {
	t.Helper()
	store, err := storage.NewBlobStore(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("preview-secret", time.Hour)
	return NewFileService(store, signer, requireSignature, zap.NewNop()), store, signer
}

func TestFileServiceListReportsSizeInMB(t *testing.T) {
	svc, store, _ := newFileFixture(t, false)

	small, err := store.Put(strings.NewReader("abc"), "a.pdf")
	require.NoError(t, err)
	big, err := store.Put(strings.NewReader(strings.Repeat("x", 1536*1024)), "b.pdf")
	require.NoError(t, err)
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(store.Dir(), small.Key), old, old))

	files, err := svc.List()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, big.Key, files[0].Name)
	assert.Equal(t, "1.50", files[0].SizeInMB)
	assert.Equal(t, "0.00", files[1].SizeInMB)
}

func TestFileServiceOpen(t *testing.T) {
	svc, store, _ := newFileFixture(t, false)
	blob, err := store.Put(strings.NewReader("%PDF-1.4"), "doc.pdf")
	require.NoError(t, err)

	f, err := svc.Open(blob.Key, "")
	require.NoError(t, err)
	defer f.Close()
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(body))
	assert.Equal(t, int64(8), f.Size)

	_, err = svc.Open("missing.pdf", "")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Open("../etc/passwd", "")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestFileServiceRequiresSignature(t *testing.T) {
	svc, store, signer := newFileFixture(t, true)
	blob, err := store.Put(strings.NewReader("data"), "doc.pdf")
	require.NoError(t, err)
	other, err := store.Put(strings.NewReader("other"), "other.pdf")
	require.NoError(t, err)

	_, err = svc.Open(blob.Key, "")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	foreign, _, err := signer.Generate("order-token", other.Key)
	require.NoError(t, err)
	_, err = svc.Open(blob.Key, foreign)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	token, _, err := signer.Generate("order-token", blob.Key)
	require.NoError(t, err)
	f, err := svc.Open(blob.Key, token)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}
