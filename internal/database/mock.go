package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockSocialRepository struct {
	mock.Mock
}

func (m *MockSocialRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockSocialRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (User, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockSocialRepository) GetAccountById(ctx context.Context, accountId int) (User, error) {
	args := m.Called(ctx, accountId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockSocialRepository) GetAccountByEmail(ctx context.Context, email string) (User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockSocialRepository) ListAccounts(ctx context.Context) ([]User, error) {
	args := m.Called(ctx)
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockSocialRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockSocialRepository) GetConversation(ctx context.Context, userA, userB int) ([]Message, error) {
	args := m.Called(ctx, userA, userB)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockSocialRepository) UnreadCountsBySender(ctx context.Context, receiverId int) (map[int]int, error) {
	args := m.Called(ctx, receiverId)
	return args.Get(0).(map[int]int), args.Error(1)
}
func (m *MockSocialRepository) MarkConversationRead(ctx context.Context, receiverId, senderId int) (int64, error) {
	args := m.Called(ctx, receiverId, senderId)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockSocialRepository) SoftDeleteMessage(ctx context.Context, messageId, requesterId int) (Message, error) {
	args := m.Called(ctx, messageId, requesterId)
	return args.Get(0).(Message), args.Error(1)
}
