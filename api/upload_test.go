package api_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkomarek/atelier/api"
)

var (
	jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
	pngHeader  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 13}
)

func doUpload(t *testing.T, env *testEnv, token, path string, data []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("sessionToken", token))
	require.NoError(t, mw.WriteField("path", path))
	fw, err := mw.CreateFormFile("file", "upload.bin")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, env.srv.URL+"/api/v1/upload", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestUploadRequiresSession(t *testing.T) {
	env := setupServer(t)
	enroll(t, env)

	resp := doUpload(t, env, "bogus", "projects/cover.png", pngHeader)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	errResp := decodeBody[api.ErrorResponse](t, resp)
	assert.True(t, errResp.SessionExpired)
	assert.Zero(t, env.blobs.Len(), "nothing may be stored without a session")
}

func TestUploadSniffsContentType(t *testing.T) {
	env := setupServer(t)
	_, token := enroll(t, env)

	// JPEG bytes behind a .png name: stored as JPEG. Bytes win over names.
	resp := doUpload(t, env, token, "projects/cover.png", jpegHeader)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	uploaded := decodeBody[api.UploadResponse](t, resp)
	assert.Equal(t, "image/jpeg", uploaded.ContentType)

	obj, ok := env.blobs.Get("projects/cover.png")
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", obj.ContentType)
}

func TestUploadRejectsUnknownSignature(t *testing.T) {
	env := setupServer(t)
	_, token := enroll(t, env)

	resp := doUpload(t, env, token, "projects/evil.png", []byte("#!/bin/sh\nrm -rf /\n"))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	assert.Zero(t, env.blobs.Len())
}

func TestUploadPathValidation(t *testing.T) {
	env := setupServer(t)
	_, token := enroll(t, env)

	for _, path := range []string{
		"projects/../secrets.png",
		"/etc/passwd",
		"elsewhere/cover.png",
		"projects/",
		"",
	} {
		resp := doUpload(t, env, token, path, pngHeader)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "path %q", path)
	}
	assert.Zero(t, env.blobs.Len())
}

func TestUploadSizeLimit(t *testing.T) {
	env := setupServer(t)
	_, token := enroll(t, env)

	big := make([]byte, (5<<20)+1)
	copy(big, pngHeader)
	resp := doUpload(t, env, token, "projects/huge.png", big)
	defer resp.Body.Close()
	assert.NotEqual(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, env.blobs.Len())
}
