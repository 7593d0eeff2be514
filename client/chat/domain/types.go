package domain

import "time"

// Message is one chat message. ID is empty until the server assigns one;
// ClientKey is the client-generated idempotency key attached at send time so
// a socket echo of our own send can be matched to the local copy.
type Message struct {
	ID         string    `json:"_id,omitempty"`
	ClientKey  string    `json:"clientMsgId,omitempty"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId,omitempty"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	IsRead     bool      `json:"isRead"`
}

type ThreadPeer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// Thread is one conversation summary in the user's chat list.
type Thread struct {
	ChatID      string     `json:"chatId"`
	OtherUser   ThreadPeer `json:"otherUser"`
	LastMessage string     `json:"lastMessage,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
