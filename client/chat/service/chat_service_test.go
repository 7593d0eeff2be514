package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cleanmatch_client/client/chat/domain"
	"cleanmatch_client/client/common/gateway"
)

type staticToken string

func (s staticToken) Token() (string, bool) {
	if s == "" {
		return "", false
	}
	return string(s), true
}

func newService(t *testing.T, token string, register func(r *gin.Engine)) *Service {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	if register != nil {
		register(r)
	}
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	tokens := staticToken(token)
	return NewService(gateway.NewClient(srv.URL, tokens), tokens)
}

func TestFetchHistoryThenSendAppends(t *testing.T) {
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	svc := newService(t, "T1", func(r *gin.Engine) {
		r.GET("/chat/messages/:self/:peer", func(c *gin.Context) {
			c.JSON(http.StatusOK, []gin.H{
				{"_id": "m1", "senderId": "u2", "content": "hello", "timestamp": base},
				{"_id": "m2", "senderId": "u1", "content": "hey", "timestamp": base.Add(time.Minute)},
			})
		})
		r.POST("/chat/message", func(c *gin.Context) {
			var msg domain.Message
			require.NoError(t, c.ShouldBindJSON(&msg))
			msg.ID = "m3"
			msg.Timestamp = base.Add(2 * time.Minute)
			c.JSON(http.StatusOK, msg)
		})
	})
	ctx := context.Background()

	require.NoError(t, svc.FetchHistory(ctx, "u1", "u2"))
	_, err := svc.SendMessage(ctx, "u1", "u2", "hi")
	require.NoError(t, err)

	messages := svc.Messages()
	require.Len(t, messages, 3)
	last := messages[2]
	assert.Equal(t, "hi", last.Content)
	assert.Equal(t, "u1", last.SenderID)
	assert.NotEmpty(t, last.ClientKey)
	for i := 1; i < len(messages); i++ {
		assert.False(t, messages[i].Timestamp.Before(messages[i-1].Timestamp))
	}
}

func TestSocketEchoReplacesLocalSend(t *testing.T) {
	svc := newService(t, "T1", func(r *gin.Engine) {
		r.POST("/chat/message", func(c *gin.Context) {
			var msg domain.Message
			require.NoError(t, c.ShouldBindJSON(&msg))
			msg.ID = "m7"
			c.JSON(http.StatusOK, msg)
		})
	})

	sent, err := svc.SendMessage(context.Background(), "u1", "u2", "on my way")
	require.NoError(t, err)
	require.NotEmpty(t, sent.ClientKey)

	echo := sent
	echo.IsRead = true
	svc.ReceiveSocket(echo)

	messages := svc.Messages()
	require.Len(t, messages, 1, "echo with a matching client key must not duplicate")
	assert.True(t, messages[0].IsRead)
	assert.Equal(t, "m7", messages[0].ID)
}

func TestSocketMessageWithoutKeyAppends(t *testing.T) {
	svc := newService(t, "T1", nil)

	svc.ReceiveSocket(domain.Message{ID: "m1", SenderID: "u2", Content: "knock"})
	svc.ReceiveSocket(domain.Message{ID: "m2", SenderID: "u2", Content: "knock knock"})

	messages := svc.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "knock", messages[0].Content)
	assert.Equal(t, "knock knock", messages[1].Content)
}

func TestReceiveHistoryReplacesWholesale(t *testing.T) {
	svc := newService(t, "T1", nil)
	svc.ReceiveSocket(domain.Message{ID: "stale", Content: "old"})

	svc.ReceiveHistory([]domain.Message{
		{ID: "m1", Content: "fresh"},
	})

	messages := svc.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "m1", messages[0].ID)
}

func TestSendFailureSurfacesServerMessage(t *testing.T) {
	svc := newService(t, "T1", func(r *gin.Engine) {
		r.POST("/chat/message", func(c *gin.Context) {
			c.JSON(http.StatusForbidden, gin.H{"message": "receiver blocked you"})
		})
	})

	_, err := svc.SendMessage(context.Background(), "u1", "u2", "hi")
	require.Error(t, err)
	assert.Equal(t, "receiver blocked you", svc.Err())
	assert.Empty(t, svc.Messages())
}

func TestMarkReadFlipsLocalFlag(t *testing.T) {
	svc := newService(t, "T1", func(r *gin.Engine) {
		r.PATCH("/chat/message/:id/read", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"_id": c.Param("id"), "isRead": true})
		})
	})
	svc.ReceiveSocket(domain.Message{ID: "m1", Content: "ping"})

	require.NoError(t, svc.MarkRead(context.Background(), "m1"))

	messages := svc.Messages()
	require.Len(t, messages, 1)
	assert.True(t, messages[0].IsRead)
}

func TestFetchThreadsSortsMostRecentFirst(t *testing.T) {
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	svc := newService(t, "T1", func(r *gin.Engine) {
		r.GET("/chat/:self", func(c *gin.Context) {
			c.JSON(http.StatusOK, []gin.H{
				{"chatId": "t1", "otherUser": gin.H{"id": "u2", "name": "Bea"}, "updatedAt": base},
				{"chatId": "t2", "otherUser": gin.H{"id": "u3", "name": "Cam"}, "updatedAt": base.Add(time.Hour)},
			})
		})
	})

	require.NoError(t, svc.FetchThreads(context.Background(), "u1"))

	threads := svc.Threads()
	require.Len(t, threads, 2)
	assert.Equal(t, "t2", threads[0].ChatID)
	assert.Equal(t, "t1", threads[1].ChatID)
}

func TestAddThreadKeepsRecencyOrder(t *testing.T) {
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	svc := newService(t, "T1", nil)

	svc.AddThread(domain.Thread{ChatID: "t1", UpdatedAt: base})
	svc.AddThread(domain.Thread{ChatID: "t2", UpdatedAt: base.Add(time.Hour)})

	threads := svc.Threads()
	require.Len(t, threads, 2)
	assert.Equal(t, "t2", threads[0].ChatID)
}

func TestReceiveChannelErrorSetsErrorState(t *testing.T) {
	svc := newService(t, "T1", nil)
	svc.ReceiveChannelError("connection lost")
	assert.Equal(t, "connection lost", svc.Err())
}

func TestClearEmptiesConversation(t *testing.T) {
	svc := newService(t, "T1", nil)
	svc.ReceiveSocket(domain.Message{ID: "m1"})
	svc.AddThread(domain.Thread{ChatID: "t1"})

	svc.Clear()
	svc.ClearThreads()

	assert.Empty(t, svc.Messages())
	assert.Empty(t, svc.Threads())
}
