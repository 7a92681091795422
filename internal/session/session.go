// Package session implements the client side of the messaging core: a
// per-user view of one open conversation, reconciled against the initial
// bulk fetch, live pushes and delete notifications, with optimistic sends
// and a locally cached unread aggregate.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/anhphanck/social-app/internal/gateway"
	"github.com/anhphanck/social-app/internal/types"
)

type Session struct {
	log     *log.Logger
	baseURL string
	httpc   *http.Client
	token   string
	user    types.User

	conn     *websocket.Conn
	writeMu  sync.Mutex
	done     chan struct{}
	doneOnce sync.Once

	mu sync.Mutex
	// cursor is the counterpart id of the open conversation, zero when
	// none. While it equals a sender's id, pushes from that sender do not
	// increment the unread cache.
	cursor   int
	messages []types.Message
	unread   map[int]int
	online   []int
	failed   map[string]string
}

func New(baseURL string, logger *log.Logger) *Session {
	return &Session{
		log:     logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 30 * time.Second},
		unread:  make(map[int]int),
		failed:  make(map[string]string),
		done:    make(chan struct{}),
	}
}

type loginResponse struct {
	User  types.User `json:"user"`
	Token string     `json:"token"`
}

func (s *Session) Login(ctx context.Context, email, password string) error {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed: %s", resp.Status)
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return err
	}

	s.token = lr.Token
	s.user = lr.User

	return nil
}

// Connect opens the long-lived connection, presenting the session's
// credential when it has one, and starts dispatching server events.
func (s *Session) Connect(ctx context.Context) error {
	wsURL := strings.Replace(s.baseURL, "http", "ws", 1) + "/ws"

	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	s.conn = conn
	go s.readLoop()

	return nil
}

func (s *Session) Close() error {
	s.doneOnce.Do(func() {
		close(s.done)
	})

	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *Session) readLoop() {
	for {
		var msg gateway.ServerMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			select {
			case <-s.done:
			default:
				s.log.Println("session read:", err)
			}
			return
		}

		switch {
		case msg.Ack != nil:
			s.handleAck(&msg)
		case msg.Message != nil:
			s.handleIncoming(msg.Message)
		case msg.Notification != nil && msg.Notification.Presence != nil:
			s.handlePresence(msg.Notification.Presence)
		case msg.Notification != nil && msg.Notification.MessageDeleted != nil:
			s.handleDeleted(msg.Notification.MessageDeleted)
		}
	}
}

// Open makes otherId the active conversation: the previously viewed thread
// is marked read, history is fetched, and the thread's cached unread count
// is zeroed.
func (s *Session) Open(ctx context.Context, otherId int) error {
	s.mu.Lock()
	prev := s.cursor
	s.cursor = otherId
	s.mu.Unlock()

	if prev != 0 && prev != otherId {
		if err := s.markRead(ctx, prev); err != nil {
			s.log.Printf("mark read for previous thread %d: %v", prev, err)
		}
	}

	path := fmt.Sprintf("/api/chats/conversation/%d/%d", s.user.Id, otherId)
	var messages []types.Message
	if err := s.getJson(ctx, path, &messages); err != nil {
		return err
	}

	s.mu.Lock()
	s.messages = messages
	s.unread[otherId] = 0
	s.mu.Unlock()

	return s.markRead(ctx, otherId)
}

// CloseConversation clears the cursor, re-enabling unread increments for
// the thread that was open.
func (s *Session) CloseConversation(ctx context.Context) error {
	s.mu.Lock()
	prev := s.cursor
	s.cursor = 0
	s.mu.Unlock()

	if prev == 0 {
		return nil
	}

	return s.markRead(ctx, prev)
}

// Send submits a message to the open conversation. A placeholder with the
// returned correlation id is appended immediately and replaced in place once
// the ack arrives; on failure it stays visible and SendError reports why.
func (s *Session) Send(content, fileUrl string, fileType types.FileType) (string, error) {
	s.mu.Lock()
	to := s.cursor
	s.mu.Unlock()

	if to == 0 {
		return "", fmt.Errorf("no open conversation")
	}

	clientId := uuid.NewString()

	placeholder := types.Message{
		SenderId:   s.user.Id,
		ReceiverId: to,
		Content:    content,
		FileUrl:    fileUrl,
		FileType:   fileType,
		CreatedAt:  time.Now().UTC(),
		ClientId:   clientId,
	}

	s.mu.Lock()
	s.messages = append(s.messages, placeholder)
	s.mu.Unlock()

	err := s.writeJson(&gateway.ClientMessage{
		BaseMessage: gateway.BaseMessage{Id: clientId, Timestamp: time.Now().UTC()},
		Send: &gateway.Send{
			To:       to,
			Content:  content,
			FileUrl:  fileUrl,
			FileType: fileType,
		},
	})
	if err != nil {
		return clientId, err
	}

	return clientId, nil
}

// RequestPresence asks for the current online snapshot; the reply arrives
// asynchronously and updates Online.
func (s *Session) RequestPresence() error {
	return s.writeJson(&gateway.ClientMessage{
		BaseMessage: gateway.BaseMessage{Timestamp: time.Now().UTC()},
		Presence:    &gateway.PresenceReq{},
	})
}

// Delete soft-deletes one of this user's messages. The cleared record
// arrives back as a delete notification.
func (s *Session) Delete(ctx context.Context, messageId int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		fmt.Sprintf("%s/api/chats/messages/%d", s.baseURL, messageId), nil)
	if err != nil {
		return err
	}
	s.authorize(req)

	resp, err := s.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("delete failed: %s", resp.Status)
	}

	return nil
}

// RefreshUnread replaces the cached unread aggregate with the server's.
func (s *Session) RefreshUnread(ctx context.Context) error {
	var counts map[string]int
	if err := s.getJson(ctx, "/api/chats/unreads", &counts); err != nil {
		return err
	}

	unread := make(map[int]int, len(counts))
	for senderId, count := range counts {
		id, err := strconv.Atoi(senderId)
		if err != nil {
			continue
		}
		unread[id] = count
	}

	s.mu.Lock()
	s.unread = unread
	s.mu.Unlock()

	return nil
}

type UploadResult struct {
	FileUrl  string         `json:"file_url"`
	FileType types.FileType `json:"file_type"`
	Filename string         `json:"filename"`
}

// Upload sends an attachment to the file-handling collaborator and returns
// the reference to include in a subsequent Send.
func (s *Session) Upload(ctx context.Context, filename, contentType string, r io.Reader) (UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return UploadResult{}, err
	}

	if _, err := io.Copy(part, r); err != nil {
		return UploadResult{}, err
	}

	if err := mw.Close(); err != nil {
		return UploadResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/chats/upload", &buf)
	if err != nil {
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	s.authorize(req)

	resp, err := s.httpc.Do(req)
	if err != nil {
		return UploadResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return UploadResult{}, fmt.Errorf("upload failed: %s", resp.Status)
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return UploadResult{}, err
	}

	return result, nil
}

func (s *Session) handleAck(msg *gateway.ServerMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.Ack.Success && msg.Ack.Message != nil {
		s.replaceByClientId(msg.Ack.Message)
		return
	}

	// leave the placeholder visible and record the failure
	s.failed[msg.Id] = msg.Ack.Error
}

func (s *Session) handleIncoming(m *types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.SenderId == s.cursor || m.ReceiverId == s.cursor {
		s.messages = append(s.messages, *m)
	}

	if m.SenderId != s.cursor && m.SenderId != s.user.Id {
		s.unread[m.SenderId]++
	}
}

func (s *Session) handleDeleted(m *types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.messages {
		if s.messages[i].Id == m.Id {
			s.messages[i] = *m
			return
		}
	}
}

func (s *Session) handlePresence(p *gateway.PresenceSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.online = p.Online
}

// replaceByClientId swaps an optimistic placeholder for the stored record,
// preserving its position in the view.
func (s *Session) replaceByClientId(stored *types.Message) {
	for i := range s.messages {
		if s.messages[i].ClientId == stored.ClientId && s.messages[i].Id == 0 {
			s.messages[i] = *stored
			return
		}
	}

	// placeholder already replaced by the push path
	s.messages = append(s.messages, *stored)
}

func (s *Session) markRead(ctx context.Context, otherId int) error {
	body, err := json.Marshal(map[string]int{"other_id": otherId})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/chats/mark-read", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	s.authorize(req)

	resp, err := s.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mark read failed: %s", resp.Status)
	}

	return nil
}

func (s *Session) getJson(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return err
	}
	s.authorize(req)

	resp, err := s.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", path, resp.Status)
	}

	return json.NewDecoder(resp.Body).Decode(v)
}

func (s *Session) authorize(req *http.Request) {
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
}

func (s *Session) writeJson(msg *gateway.ClientMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("not connected")
	}

	return s.conn.WriteJSON(msg)
}

// User returns the authenticated principal, zero before Login.
func (s *Session) User() types.User {
	return s.user
}

// Messages returns a copy of the open conversation view.
func (s *Session) Messages() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Unread returns the cached unread count for the given sender.
func (s *Session) Unread(senderId int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.unread[senderId]
}

// Online returns the last received presence snapshot.
func (s *Session) Online() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]int, len(s.online))
	copy(out, s.online)
	return out
}

// SendError reports the failure recorded for a send, if any.
func (s *Session) SendError(clientId string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	errMsg, ok := s.failed[clientId]
	return errMsg, ok
}
