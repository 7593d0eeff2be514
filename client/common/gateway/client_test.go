package gateway

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token() (string, bool) {
	if s == "" {
		return "", false
	}
	return string(s), true
}

func newStubServer(t *testing.T, register func(r *gin.Engine)) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestGetAttachesBearerToken(t *testing.T) {
	var gotAuth string
	srv := newStubServer(t, func(r *gin.Engine) {
		r.GET("/user", func(c *gin.Context) {
			gotAuth = c.GetHeader("Authorization")
			c.JSON(http.StatusOK, []gin.H{})
		})
	})

	client := NewClient(srv.URL, staticToken("T1"))
	var out []map[string]any
	require.NoError(t, client.Get(context.Background(), "/user", &out))
	assert.Equal(t, "Bearer T1", gotAuth)
}

func TestGetWithoutTokenOmitsHeader(t *testing.T) {
	var gotAuth string
	srv := newStubServer(t, func(r *gin.Engine) {
		r.POST("/auth/login", func(c *gin.Context) {
			gotAuth = c.GetHeader("Authorization")
			c.JSON(http.StatusOK, gin.H{"token": "T1"})
		})
	})

	client := NewClient(srv.URL, staticToken(""))
	var out map[string]any
	require.NoError(t, client.Post(context.Background(), "/auth/login", gin.H{}, &out))
	assert.Empty(t, gotAuth)
}

func TestNon2xxBecomesAPIError(t *testing.T) {
	srv := newStubServer(t, func(r *gin.Engine) {
		r.POST("/auth/login", func(c *gin.Context) {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
		})
	})

	client := NewClient(srv.URL, nil)
	err := client.Post(context.Background(), "/auth/login", gin.H{}, nil)
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok, "expected *APIError, got %T", err)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Invalid credentials", apiErr.Message)
}

func TestMessagePrefersServerMessage(t *testing.T) {
	err := &APIError{Status: 400, Message: "name is required"}
	assert.Equal(t, "name is required", Message(err, "Failed to create cleaner"))
}

func TestMessageFallsBackOnTransportError(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", nil)
	err := client.Get(context.Background(), "/user", nil)
	require.Error(t, err)
	assert.Equal(t, "Failed to fetch cleaners", Message(err, "Failed to fetch cleaners"))
}

func TestPostFormSendsFieldsAndImage(t *testing.T) {
	var gotName, gotFileName string
	var gotImageBytes int
	srv := newStubServer(t, func(r *gin.Engine) {
		r.POST("/user", func(c *gin.Context) {
			gotName = c.PostForm("name")
			file, err := c.FormFile("image")
			require.NoError(t, err)
			gotFileName = file.Filename
			gotImageBytes = int(file.Size)
			c.JSON(http.StatusOK, gin.H{"_id": "c1"})
		})
	})

	client := NewClient(srv.URL, staticToken("T1"))
	part := &ImagePart{FileName: "avatar.jpg", Data: []byte{0xff, 0xd8, 0xff}}
	var out map[string]any
	err := client.PostForm(context.Background(), "/user", map[string]string{"name": "Ana"}, part, &out)
	require.NoError(t, err)
	assert.Equal(t, "Ana", gotName)
	assert.Equal(t, "avatar.jpg", gotFileName)
	assert.Equal(t, 3, gotImageBytes)
}

func TestNewImagePartBoundsOversizedImages(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, image.NewRGBA(image.Rect(0, 0, 2048, 512))))

	part, err := NewImagePart("big.png", buf.Bytes())
	require.NoError(t, err)

	decoded, err := imaging.Decode(bytes.NewReader(part.Data))
	require.NoError(t, err)
	assert.LessOrEqual(t, decoded.Bounds().Dx(), 1024)
	assert.LessOrEqual(t, decoded.Bounds().Dy(), 1024)
}

func TestNewImagePartRejectsGarbage(t *testing.T) {
	_, err := NewImagePart("junk.bin", []byte("not an image"))
	assert.Error(t, err)
}
