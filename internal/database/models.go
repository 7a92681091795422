package database

import "time"

type User struct {
	Id           int
	Username     string
	EmailAddress string
	Role         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Message struct {
	Id         int
	SenderId   int
	ReceiverId int
	Content    string
	FileUrl    string
	FileType   string
	IsRead     bool
	IsDeleted  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type CreateMessageParams struct {
	SenderId   int
	ReceiverId int
	Content    string
	FileUrl    string
	FileType   string
}
