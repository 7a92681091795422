package database

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a row does not exist or the caller is not
// allowed to act on it. The two cases are deliberately indistinguishable.
var ErrNotFound = errors.New("not found")

type SocialRepository interface {
	Ping() error
	CreateAccount(ctx context.Context, params CreateAccountParams) (User, error)
	GetAccountById(ctx context.Context, accountId int) (User, error)
	GetAccountByEmail(ctx context.Context, email string) (User, error)
	ListAccounts(ctx context.Context) ([]User, error)
	CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error)
	GetConversation(ctx context.Context, userA, userB int) ([]Message, error)
	UnreadCountsBySender(ctx context.Context, receiverId int) (map[int]int, error)
	MarkConversationRead(ctx context.Context, receiverId, senderId int) (int64, error)
	SoftDeleteMessage(ctx context.Context, messageId, requesterId int) (Message, error)
}
