package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cleanmatch_client/client/common/gateway"
	"cleanmatch_client/client/directory/domain"
)

type staticToken string

func (s staticToken) Token() (string, bool) {
	if s == "" {
		return "", false
	}
	return string(s), true
}

func newService(t *testing.T, token string, register func(r *gin.Engine)) (*Service, *atomic.Int64) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	requests := &atomic.Int64{}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		requests.Add(1)
		c.Next()
	})
	if register != nil {
		register(r)
	}
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	tokens := staticToken(token)
	return NewService(gateway.NewClient(srv.URL, tokens), tokens), requests
}

func TestFetchAllReplacesCache(t *testing.T) {
	svc, _ := newService(t, "T1", func(r *gin.Engine) {
		r.GET("/user", func(c *gin.Context) {
			c.JSON(http.StatusOK, []gin.H{{"_id": "c1", "name": "Ana"}})
		})
	})

	require.NoError(t, svc.FetchAll(context.Background()))

	cleaners := svc.Cleaners()
	require.Len(t, cleaners, 1)
	assert.Equal(t, "c1", cleaners[0].ID)
	assert.Equal(t, "Ana", cleaners[0].Name)
}

func TestFetchAllWithoutTokenShortCircuits(t *testing.T) {
	svc, requests := newService(t, "", nil)

	err := svc.FetchAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, "User is not authenticated", svc.Err())
	assert.Equal(t, int64(0), requests.Load(), "no network call without a token")
}

func TestFetchAllFailurePreservesCache(t *testing.T) {
	fail := false
	svc, _ := newService(t, "T1", func(r *gin.Engine) {
		r.GET("/user", func(c *gin.Context) {
			if fail {
				c.JSON(http.StatusInternalServerError, gin.H{"message": "boom"})
				return
			}
			c.JSON(http.StatusOK, []gin.H{{"_id": "c1", "name": "Ana"}})
		})
	})
	ctx := context.Background()

	require.NoError(t, svc.FetchAll(ctx))
	fail = true
	require.Error(t, svc.FetchAll(ctx))

	assert.Len(t, svc.Cleaners(), 1, "failed fetch must keep the previous cache")
	assert.Equal(t, "boom", svc.Err())
}

func TestUpdateReplacesMatchingRecord(t *testing.T) {
	svc, _ := newService(t, "T1", func(r *gin.Engine) {
		r.GET("/user", func(c *gin.Context) {
			c.JSON(http.StatusOK, []gin.H{
				{"_id": "c1", "name": "Ana", "phone": "111"},
				{"_id": "c2", "name": "Bea", "phone": "222"},
			})
		})
		r.PATCH("/user/:id", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"_id": c.Param("id"), "name": "Ana Maria"})
		})
	})
	ctx := context.Background()
	require.NoError(t, svc.FetchAll(ctx))

	_, err := svc.Update(ctx, "c1", domain.CleanerInput{Name: "Ana Maria"}, nil)
	require.NoError(t, err)

	cleaners := svc.Cleaners()
	require.Len(t, cleaners, 2)
	assert.Equal(t, "Ana Maria", cleaners[0].Name)
	assert.Empty(t, cleaners[0].Phone, "update replaces the record wholesale, not a field merge")
	assert.Equal(t, "Bea", cleaners[1].Name)
}

func TestUpdateMissLeavesCacheUnchanged(t *testing.T) {
	svc, _ := newService(t, "T1", func(r *gin.Engine) {
		r.GET("/user", func(c *gin.Context) {
			c.JSON(http.StatusOK, []gin.H{{"_id": "c1", "name": "Ana"}})
		})
		r.PATCH("/user/:id", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"_id": c.Param("id"), "name": "Ghost"})
		})
	})
	ctx := context.Background()
	require.NoError(t, svc.FetchAll(ctx))

	_, err := svc.Update(ctx, "missing", domain.CleanerInput{Name: "Ghost"}, nil)
	require.NoError(t, err)

	cleaners := svc.Cleaners()
	require.Len(t, cleaners, 1)
	assert.Equal(t, "Ana", cleaners[0].Name)
}

func TestDeleteRemovesMatchingRecord(t *testing.T) {
	svc, _ := newService(t, "T1", func(r *gin.Engine) {
		r.GET("/user", func(c *gin.Context) {
			c.JSON(http.StatusOK, []gin.H{{"_id": "c1", "name": "Ana"}})
		})
		r.DELETE("/user/:id", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"_id": c.Param("id")})
		})
	})
	ctx := context.Background()
	require.NoError(t, svc.FetchAll(ctx))

	require.NoError(t, svc.Delete(ctx, "c1"))
	assert.Empty(t, svc.Cleaners())
}

func TestCreateAppendsServerRecord(t *testing.T) {
	svc, _ := newService(t, "T1", func(r *gin.Engine) {
		r.POST("/user", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"_id": "c9", "name": c.PostForm("name")})
		})
	})

	created, err := svc.Create(context.Background(), domain.CleanerInput{Name: "Nor", Email: "n@x.com"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "c9", created.ID)

	cleaners := svc.Cleaners()
	require.Len(t, cleaners, 1)
	assert.Equal(t, "Nor", cleaners[0].Name)
}

func TestCreateFailureSurfacesServerMessageVerbatim(t *testing.T) {
	svc, _ := newService(t, "T1", func(r *gin.Engine) {
		r.POST("/user", func(c *gin.Context) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "email already in use"})
		})
	})

	_, err := svc.Create(context.Background(), domain.CleanerInput{Email: "dup@x.com"}, nil)
	require.Error(t, err)
	assert.Equal(t, "email already in use", svc.Err())
	assert.Empty(t, svc.Cleaners())
}
