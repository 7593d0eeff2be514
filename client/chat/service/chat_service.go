package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"cleanmatch_client/client/chat/domain"
	"cleanmatch_client/client/common/gateway"
	cmnlog "cleanmatch_client/client/common/log"
)

const (
	chatBasePath    = "/chat"
	messagePath     = chatBasePath + "/message"
	messagesPath    = chatBasePath + "/messages"
	historyFallback = "Failed to fetch chat history"
	sendFallback    = "Failed to send message"
	readFallback    = "Failed to mark message read"
	threadsFallback = "Failed to fetch user chats"

	errNotAuthenticated = "User is not authenticated"
)

// Service holds the in-memory message list for the active conversation and
// the user's thread list. Locally-sent messages, fetched history and
// socket-pushed messages merge into one sequence; appends are assumed
// arrival-ordered, with the client key reconciling socket echoes of our own
// sends.
type Service struct {
	mu       sync.RWMutex
	messages []domain.Message
	threads  []domain.Thread
	loading  bool
	lastErr  string

	gw     *gateway.Client
	tokens gateway.TokenSource
}

func NewService(gw *gateway.Client, tokens gateway.TokenSource) *Service {
	return &Service{gw: gw, tokens: tokens}
}

// FetchHistory replaces the message list wholesale with the stored history
// for the self/peer pair.
func (s *Service) FetchHistory(ctx context.Context, selfID, peerID string) error {
	if err := s.requireToken(); err != nil {
		return err
	}
	s.begin()

	var history []domain.Message
	if err := s.gw.Get(ctx, messagesPath+"/"+selfID+"/"+peerID, &history); err != nil {
		return s.fail("fetch_history", err, historyFallback)
	}

	s.mu.Lock()
	s.messages = history
	s.loading = false
	s.lastErr = ""
	s.mu.Unlock()
	cmnlog.Infof("event=chat action=fetch_history status=ok peer_id=%s count=%d", peerID, len(history))
	return nil
}

// SendMessage posts the message and appends the server-confirmed copy. The
// message carries a generated client key; if the server echoes it back over
// the socket later, ReceiveSocket folds the echo into this entry instead of
// duplicating it.
func (s *Service) SendMessage(ctx context.Context, selfID, peerID, content string) (domain.Message, error) {
	if err := s.requireToken(); err != nil {
		return domain.Message{}, err
	}
	s.begin()

	outgoing := domain.Message{
		ClientKey:  uuid.NewString(),
		SenderID:   selfID,
		ReceiverID: peerID,
		Content:    content,
	}
	var created domain.Message
	if err := s.gw.Post(ctx, messagePath, outgoing, &created); err != nil {
		return domain.Message{}, s.fail("send", err, sendFallback)
	}
	if created.ClientKey == "" {
		created.ClientKey = outgoing.ClientKey
	}

	s.mu.Lock()
	s.upsertLocked(created)
	s.loading = false
	s.lastErr = ""
	s.mu.Unlock()
	cmnlog.Infof("event=chat action=send status=ok message_id=%s peer_id=%s", created.ID, peerID)
	return created, nil
}

// ReceiveSocket merges a socket-pushed message into the list. A message
// whose client key matches an existing entry replaces it; everything else is
// appended in arrival order.
func (s *Service) ReceiveSocket(msg domain.Message) {
	s.mu.Lock()
	s.upsertLocked(msg)
	s.mu.Unlock()
	cmnlog.Debugf("event=chat action=receive_socket message_id=%s sender_id=%s", msg.ID, msg.SenderID)
}

// ReceiveHistory applies a socket-delivered history snapshot, replacing the
// list wholesale like FetchHistory does.
func (s *Service) ReceiveHistory(history []domain.Message) {
	s.mu.Lock()
	s.messages = append([]domain.Message(nil), history...)
	s.mu.Unlock()
	cmnlog.Debugf("event=chat action=receive_history count=%d", len(history))
}

// ReceiveChannelError records a realtime-channel failure in the store's
// error state so the conversation screen can render it.
func (s *Service) ReceiveChannelError(message string) {
	s.mu.Lock()
	s.lastErr = message
	s.mu.Unlock()
}

// MarkRead reports the read receipt and flips the local flag by message id.
func (s *Service) MarkRead(ctx context.Context, messageID string) error {
	if err := s.requireToken(); err != nil {
		return err
	}

	if err := s.gw.Patch(ctx, messagePath+"/"+messageID+"/read", map[string]string{}, nil); err != nil {
		return s.fail("mark_read", err, readFallback)
	}

	s.mu.Lock()
	for i := range s.messages {
		if s.messages[i].ID == messageID {
			s.messages[i].IsRead = true
			break
		}
	}
	s.mu.Unlock()
	return nil
}

// FetchThreads replaces the user's conversation list, most recent first.
func (s *Service) FetchThreads(ctx context.Context, selfID string) error {
	if err := s.requireToken(); err != nil {
		return err
	}
	s.begin()

	var threads []domain.Thread
	if err := s.gw.Get(ctx, chatBasePath+"/"+selfID, &threads); err != nil {
		return s.fail("fetch_threads", err, threadsFallback)
	}

	s.mu.Lock()
	s.threads = threads
	sortThreadsLocked(s.threads)
	s.loading = false
	s.lastErr = ""
	s.mu.Unlock()
	cmnlog.Infof("event=chat action=fetch_threads status=ok count=%d", len(threads))
	return nil
}

// AddThread inserts a new conversation summary keeping the recency order.
func (s *Service) AddThread(thread domain.Thread) {
	s.mu.Lock()
	s.threads = append(s.threads, thread)
	sortThreadsLocked(s.threads)
	s.mu.Unlock()
}

// Clear empties the active conversation; called when the identity pair
// changes or on logout.
func (s *Service) Clear() {
	s.mu.Lock()
	s.messages = nil
	s.mu.Unlock()
}

func (s *Service) ClearThreads() {
	s.mu.Lock()
	s.threads = nil
	s.mu.Unlock()
}

func (s *Service) Messages() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Service) Threads() []domain.Thread {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Thread, len(s.threads))
	copy(out, s.threads)
	return out
}

func (s *Service) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Service) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Service) upsertLocked(msg domain.Message) {
	if msg.ClientKey != "" {
		for i := range s.messages {
			if s.messages[i].ClientKey == msg.ClientKey {
				s.messages[i] = msg
				return
			}
		}
	}
	s.messages = append(s.messages, msg)
}

func sortThreadsLocked(threads []domain.Thread) {
	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].UpdatedAt.After(threads[j].UpdatedAt)
	})
}

func (s *Service) requireToken() error {
	if _, ok := s.tokens.Token(); !ok {
		s.mu.Lock()
		s.lastErr = errNotAuthenticated
		s.mu.Unlock()
		return errors.New(errNotAuthenticated)
	}
	return nil
}

func (s *Service) begin() {
	s.mu.Lock()
	s.loading = true
	s.lastErr = ""
	s.mu.Unlock()
}

func (s *Service) fail(action string, err error, fallback string) error {
	message := gateway.Message(err, fallback)
	s.mu.Lock()
	s.loading = false
	s.lastErr = message
	s.mu.Unlock()
	cmnlog.Warnf("event=chat action=%s status=failed error=%v", action, err)
	return errors.New(message)
}
