package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketkenya/internal/api"
	"ticketkenya/internal/config"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestBackendModeIsDefault(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/uploads/images", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://cdn/a.png"})
	}))
	defer srv.Close()

	client := api.New(srv.URL, api.WithTokenSource(api.TokenFunc(func() string { return "tok" })))
	u, err := New(client, config.UploadConfig{}, nil)
	require.NoError(t, err)

	url, err := u.Upload(context.Background(), "/tmp/a.png", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/a.png", url)
	assert.Equal(t, "Bearer tok", gotAuth)
}

func TestRejectsNonImages(t *testing.T) {
	u, err := New(api.New("http://unused"), config.UploadConfig{Mode: ModeBackend}, nil)
	require.NoError(t, err)

	_, err = u.Upload(context.Background(), "notes.txt", strings.NewReader("just text"))
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestRejectsOversizedImages(t *testing.T) {
	u, err := New(api.New("http://unused"), config.UploadConfig{}, nil)
	require.NoError(t, err)

	big := append(append([]byte{}, pngHeader...), make([]byte, MaxImageBytes)...)
	_, err = u.Upload(context.Background(), "big.png", bytes.NewReader(big))
	assert.ErrorContains(t, err, "larger than")
}

func TestCloudinaryModeNeedsSettings(t *testing.T) {
	_, err := New(api.New("http://unused"), config.UploadConfig{Mode: ModeCloudinary}, nil)
	assert.Error(t, err)

	_, err = New(api.New("http://unused"), config.UploadConfig{Mode: "s3"}, nil)
	assert.Error(t, err)

	u, err := New(api.New("http://unused"), config.UploadConfig{Mode: ModeCloudinary, CloudName: "demo", UploadPreset: "p"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &cloudinaryUploader{}, u)
}
