package gateway

import (
	"time"

	"github.com/anhphanck/social-app/internal/types"
)

type BaseMessage struct {
	// Id is the client-generated correlation id, echoed back on the ack.
	Id        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	Send     *Send        `json:"send,omitempty"`
	Presence *PresenceReq `json:"presence,omitempty"`
	client   *Client
}

type Send struct {
	To       int            `json:"to"`
	Content  string         `json:"content,omitempty"`
	FileUrl  string         `json:"file_url,omitempty"`
	FileType types.FileType `json:"file_type,omitempty"`
}

// PresenceReq asks the server to reply with the current online snapshot on
// this connection only.
type PresenceReq struct{}

type ServerMessage struct {
	BaseMessage
	Ack          *Ack           `json:"ack,omitempty"`
	Message      *types.Message `json:"message,omitempty"`
	Notification *Notification  `json:"notification,omitempty"`
}

type Ack struct {
	Success bool           `json:"success"`
	Message *types.Message `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
}

type Notification struct {
	Presence       *PresenceSnapshot `json:"presence,omitempty"`
	MessageDeleted *types.Message    `json:"message_deleted,omitempty"`
}

type PresenceSnapshot struct {
	Online []int `json:"online"`
}

func ackSuccess(id string, msg *types.Message) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Ack: &Ack{
			Success: true,
			Message: msg,
		},
	}
}

func ackError(id string, errMsg string) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Ack: &Ack{
			Success: false,
			Error:   errMsg,
		},
	}
}

func pushMessage(msg *types.Message) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Message: msg,
	}
}

func presenceSnapshot(online []int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Notification: &Notification{
			Presence: &PresenceSnapshot{Online: online},
		},
	}
}

func deleteNotification(msg *types.Message) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Notification: &Notification{
			MessageDeleted: msg,
		},
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
