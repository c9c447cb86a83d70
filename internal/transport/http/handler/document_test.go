package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docuchat/internal/app"
	"docuchat/internal/transport/http/response"
)

func TestUploadCreatesDocument(t *testing.T) {
	env := newTestEnv("user-1")

	w := env.uploadPDF("report.pdf", []byte("%PDF-1.4 fake"))
	require.Equal(t, http.StatusCreated, w.Code)

	envlp, err := decodeEnvelope(w.Body)
	require.NoError(t, err)
	assert.Equal(t, response.CodeOK, envlp.Code)

	data, ok := envlp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "report.pdf", data["name"])
	assert.Equal(t, "extracted text", data["content"])
	assert.Len(t, env.binaries.objects, 1)
}

func TestUploadUnprocessablePDF(t *testing.T) {
	env := newTestEnv("user-1")
	env.extractor.text = ""
	env.extractor.err = fmt.Errorf("no text")

	w := env.uploadPDF("scan.pdf", []byte("%PDF-1.4 fake"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	envlp, err := decodeEnvelope(w.Body)
	require.NoError(t, err)
	assert.Equal(t, response.CodeUnprocessable, envlp.Code)
	assert.Contains(t, envlp.Message, "scanned or image-only")
	assert.Empty(t, env.binaries.objects)
}

func TestUploadExtractionTimeout(t *testing.T) {
	env := newTestEnv("user-1")
	env.extractor.text = ""
	env.extractor.err = context.DeadlineExceeded

	w := env.uploadPDF("slow.pdf", []byte("%PDF-1.4 fake"))
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)

	envlp, err := decodeEnvelope(w.Body)
	require.NoError(t, err)
	assert.Equal(t, response.CodeTimeout, envlp.Code)
	assert.NotContains(t, envlp.Message, "scanned or image-only")
	assert.Empty(t, env.binaries.objects)
}

func TestUploadTooLarge(t *testing.T) {
	env := newTestEnv("user-1")

	w := env.uploadPDF("big.pdf", bytes.Repeat([]byte("a"), (1<<20)+1))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	envlp, err := decodeEnvelope(w.Body)
	require.NoError(t, err)
	assert.Equal(t, response.CodePayloadTooLarge, envlp.Code)
}

func TestUploadMissingFile(t *testing.T) {
	env := newTestEnv("user-1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", nil)
	w := env.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadUnauthenticated(t *testing.T) {
	env := newTestEnv("")

	w := env.uploadPDF("report.pdf", []byte("%PDF"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetDocumentNotFound(t *testing.T) {
	env := newTestEnv("user-1")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/999", nil)
	w := env.do(req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	envlp, err := decodeEnvelope(w.Body)
	require.NoError(t, err)
	assert.Equal(t, response.CodeDocumentNotFound, envlp.Code)
	assert.Equal(t, app.ErrDocumentNotFound.Error(), envlp.Message)
}

func TestGetDocumentBadID(t *testing.T) {
	env := newTestEnv("user-1")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/abc", nil)
	w := env.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAndDeleteDocument(t *testing.T) {
	env := newTestEnv("user-1")

	w := env.uploadPDF("one.pdf", []byte("%PDF"))
	require.Equal(t, http.StatusCreated, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	w = env.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	envlp, err := decodeEnvelope(w.Body)
	require.NoError(t, err)
	list, ok := envlp.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, list, 1)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/documents/1", nil)
	w = env.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, env.binaries.objects)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/documents/1", nil)
	w = env.do(req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
