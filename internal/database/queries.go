package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const messageColumns = "id, sender_id, receiver_id, COALESCE(content, ''), COALESCE(file_url, ''), " +
	"file_type, is_read, is_deleted, created_at, updated_at"

// conversationLimit caps a conversation fetch at the most recent entries.
const conversationLimit = 500

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (Message, error) {
	var m Message
	err := row.Scan(
		&m.Id,
		&m.SenderId,
		&m.ReceiverId,
		&m.Content,
		&m.FileUrl,
		&m.FileType,
		&m.IsRead,
		&m.IsDeleted,
		&m.CreatedAt,
		&m.UpdatedAt,
	)

	return m, err
}

func (db *PgSocialRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (User, error) {
	res := db.conn.QueryRowContext(ctx,
		"INSERT INTO accounts (username, email, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) RETURNING id, username, email, role, created_at, updated_at",
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgSocialRepository) GetAccountById(ctx context.Context, accountId int) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, username, email, role, created_at, updated_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		accountId,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}

func (db *PgSocialRepository) GetAccountByEmail(ctx context.Context, email string) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, username, email, role, password_hash, created_at, updated_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.Role,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}

func (db *PgSocialRepository) ListAccounts(ctx context.Context) ([]User, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, username, role FROM accounts ORDER BY username",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users = make([]User, 0)
	for rows.Next() {
		var u User
		if err = rows.Scan(&u.Id, &u.Username, &u.Role); err != nil {
			return nil, err
		}

		users = append(users, u)
	}

	return users, rows.Err()
}

func (db *PgSocialRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	fileType := params.FileType
	if fileType == "" {
		fileType = "text"
	}

	res := db.conn.QueryRowContext(ctx,
		"INSERT INTO messages (sender_id, receiver_id, content, file_url, file_type, created_at, updated_at) "+
			"VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $6) RETURNING "+messageColumns,
		params.SenderId,
		params.ReceiverId,
		params.Content,
		params.FileUrl,
		fileType,
		time.Now().UTC(),
	)

	return scanMessage(res)
}

// GetConversation returns the most recent messages exchanged between the two
// users in ascending creation order, ties broken by id.
func (db *PgSocialRepository) GetConversation(ctx context.Context, userA, userB int) ([]Message, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM ("+
			"SELECT id, sender_id, receiver_id, content, file_url, file_type, is_read, is_deleted, created_at, updated_at "+
			"FROM messages "+
			"WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1) "+
			"ORDER BY created_at DESC, id DESC LIMIT $3"+
			") m ORDER BY created_at ASC, id ASC",
		userA,
		userB,
		conversationLimit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}

		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func (db *PgSocialRepository) UnreadCountsBySender(ctx context.Context, receiverId int) (map[int]int, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT sender_id, COUNT(*) FROM messages "+
			"WHERE receiver_id = $1 AND is_read = FALSE AND is_deleted = FALSE GROUP BY sender_id",
		receiverId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var senderId, count int
		if err = rows.Scan(&senderId, &count); err != nil {
			return nil, err
		}

		counts[senderId] = count
	}

	return counts, rows.Err()
}

func (db *PgSocialRepository) MarkConversationRead(ctx context.Context, receiverId, senderId int) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE messages SET is_read = TRUE, updated_at = $3 "+
			"WHERE receiver_id = $1 AND sender_id = $2 AND is_read = FALSE",
		receiverId,
		senderId,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// SoftDeleteMessage marks the message deleted and clears its payload. Only
// the original sender may delete; anyone else gets ErrNotFound, whether or
// not the message exists. Repeating a delete also gets ErrNotFound, but the
// cleared fields are never resurrected.
func (db *PgSocialRepository) SoftDeleteMessage(ctx context.Context, messageId, requesterId int) (Message, error) {
	row := db.conn.QueryRowContext(ctx,
		"UPDATE messages SET is_deleted = TRUE, content = NULL, file_url = NULL, file_type = 'text', updated_at = $3 "+
			"WHERE id = $1 AND sender_id = $2 AND is_deleted = FALSE RETURNING "+messageColumns,
		messageId,
		requesterId,
		time.Now().UTC(),
	)

	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, ErrNotFound
	}

	return msg, err
}
