package handler

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/print-hub-api/internal/service"
	"github.com/noah-isme/print-hub-api/pkg/storage"
)

func TestFileHandlerServe(t *testing.T) {
	store, err := storage.NewBlobStore(t.TempDir())
	require.NoError(t, err)
	blob, err := store.Put(strings.NewReader("%PDF-1.4 body"), "Notes.PDF")
	require.NoError(t, err)
	h := NewFileHandler(service.NewFileService(store, storage.NewSignedURLSigner("s", time.Hour), false, zap.NewNop()))

	c, w := newGinContext(http.MethodGet, "/files/"+blob.Key, nil)
	c.Params = append(c.Params, ginParam("key", "/"+blob.Key))
	h.Serve(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=3600", w.Header().Get("Cache-Control"))
	assert.Equal(t, blob.LastModified.UTC().Format(http.TimeFormat), w.Header().Get("Last-Modified"))
	assert.Equal(t, "%PDF-1.4 body", w.Body.String())
}

func TestFileHandlerServeRequiresSignature(t *testing.T) {
	store, err := storage.NewBlobStore(t.TempDir())
	require.NoError(t, err)
	blob, err := store.Put(strings.NewReader("data"), "a.png")
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("files-secret", time.Hour)
	h := NewFileHandler(service.NewFileService(store, signer, true, zap.NewNop()))

	c, w := newGinContext(http.MethodGet, "/files/"+blob.Key, nil)
	c.Params = append(c.Params, ginParam("key", "/"+blob.Key))
	h.Serve(c)
	assert.Equal(t, http.StatusForbidden, w.Code)

	token, _, err := signer.Generate("order", blob.Key)
	require.NoError(t, err)
	c, w = newGinContext(http.MethodGet, "/files/"+blob.Key+"?token="+token, nil)
	c.Params = append(c.Params, ginParam("key", "/"+blob.Key))
	h.Serve(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
}

func TestFileHandlerServeMissing(t *testing.T) {
	store, err := storage.NewBlobStore(t.TempDir())
	require.NoError(t, err)
	h := NewFileHandler(service.NewFileService(store, nil, false, zap.NewNop()))

	c, w := newGinContext(http.MethodGet, "/files/nope.pdf", nil)
	c.Params = append(c.Params, ginParam("key", "/nope.pdf"))
	h.Serve(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
