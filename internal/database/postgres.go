package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatline/internal/models"
	"chatline/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

// queryer is the subset of pgxpool.Pool and pgx.Tx the loaders need.
type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database successfully")
	return &PostgresStore{pool: pool}, nil
}

func (db *PostgresStore) Close() error {
	db.pool.Close()
	return nil
}

// User Repository Implementation
func (db *PostgresStore) CreateUser(ctx context.Context, req *models.RegisterRequest, passwordHash string) (*models.User, error) {
	query := `
		INSERT INTO users (id, user_name, display_name, email, password_hash, show_online_status, created_at)
		VALUES ($1, $2, $3, $4, $5, true, NOW())
		RETURNING id, user_name, display_name, email, show_online_status, created_at`

	user := &models.User{PasswordHash: passwordHash}
	err := db.pool.QueryRow(ctx, query, uuid.NewString(), req.UserName, req.DisplayName, req.Email, passwordHash).Scan(
		&user.ID, &user.UserName, &user.DisplayName, &user.Email, &user.ShowOnlineStatus, &user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

func (db *PostgresStore) GetUserByUserName(ctx context.Context, userName string) (*models.User, error) {
	query := `
		SELECT id, user_name, display_name, email, password_hash, COALESCE(avatar_url, ''), show_online_status, created_at
		FROM users WHERE user_name = $1`

	user := &models.User{}
	err := db.pool.QueryRow(ctx, query, userName).Scan(
		&user.ID, &user.UserName, &user.DisplayName, &user.Email, &user.PasswordHash,
		&user.AvatarURL, &user.ShowOnlineStatus, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (db *PostgresStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, user_name, display_name, email, COALESCE(avatar_url, ''), show_online_status, created_at
		FROM users WHERE id = $1`

	user := &models.User{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.UserName, &user.DisplayName, &user.Email,
		&user.AvatarURL, &user.ShowOnlineStatus, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (db *PostgresStore) GetUserVisibilityPreference(ctx context.Context, userID string) (bool, error) {
	var visible bool
	err := db.pool.QueryRow(ctx, `SELECT show_online_status FROM users WHERE id = $1`, userID).Scan(&visible)
	if err != nil {
		return false, err
	}
	return visible, nil
}

func (db *PostgresStore) SetUserVisibilityPreference(ctx context.Context, userID string, visible bool) error {
	_, err := db.pool.Exec(ctx, `UPDATE users SET show_online_status = $2 WHERE id = $1`, userID, visible)
	return err
}

// Conversation Repository Implementation
func (db *PostgresStore) GetOrCreateDirectConversation(ctx context.Context, userID, otherID string) (*models.Conversation, error) {
	query := `
		SELECT c.id
		FROM conversations c
		JOIN participants p1 ON p1.conversation_id = c.id AND p1.user_id = $1
		JOIN participants p2 ON p2.conversation_id = c.id AND p2.user_id = $2
		WHERE c.type = 'direct'
		LIMIT 1`

	var id string
	err := db.pool.QueryRow(ctx, query, userID, otherID).Scan(&id)
	if err == nil {
		return db.loadConversation(ctx, db.pool, id)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	id = uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO conversations (id, type, created_by, last_message_at, created_at)
		VALUES ($1, 'direct', $2, NOW(), NOW())`, id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	for _, uid := range []string{userID, otherID} {
		if _, err := tx.Exec(ctx, `
			INSERT INTO participants (conversation_id, user_id, joined_at)
			VALUES ($1, $2, NOW())`, id, uid); err != nil {
			return nil, fmt.Errorf("failed to add participant: %w", err)
		}
	}

	conversation, err := db.loadConversation(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return conversation, nil
}

func (db *PostgresStore) CreateGroupConversation(ctx context.Context, creatorID, name string, memberIDs []string) (*models.Conversation, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	id := uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO conversations (id, type, name, created_by, last_message_at, created_at)
		VALUES ($1, 'group', $2, $3, NOW(), NOW())`, id, name, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	for _, uid := range append([]string{creatorID}, memberIDs...) {
		if _, err := tx.Exec(ctx, `
			INSERT INTO participants (conversation_id, user_id, joined_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (conversation_id, user_id) DO NOTHING`, id, uid); err != nil {
			return nil, fmt.Errorf("failed to add participant: %w", err)
		}
	}

	conversation, err := db.loadConversation(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return conversation, nil
}

func (db *PostgresStore) GetConversationByID(ctx context.Context, id string) (*models.Conversation, error) {
	return db.loadConversation(ctx, db.pool, id)
}

func (db *PostgresStore) ListConversationsForUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	query := `
		SELECT c.id
		FROM conversations c
		JOIN participants p ON p.conversation_id = c.id
		WHERE p.user_id = $1
		ORDER BY c.last_message_at DESC`

	rows, err := db.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	conversations := make([]*models.Conversation, 0, len(ids))
	for _, id := range ids {
		conversation, err := db.loadConversation(ctx, db.pool, id)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conversation)
	}

	return conversations, nil
}

func (db *PostgresStore) ListConversationIDsForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := db.pool.Query(ctx, `SELECT conversation_id FROM participants WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (db *PostgresStore) DeleteConversation(ctx context.Context, id string) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE conversation_id = $1`, id); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM participants WHERE conversation_id = $1`, id); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (db *PostgresStore) RemoveParticipant(ctx context.Context, conversationID, userID string) (int, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM participants WHERE conversation_id = $1 AND user_id = $2`, conversationID, userID); err != nil {
		return 0, err
	}

	var remaining int
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM participants WHERE conversation_id = $1`, conversationID).Scan(&remaining); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	return remaining, nil
}

func (db *PostgresStore) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM participants WHERE conversation_id = $1 AND user_id = $2)`,
		conversationID, userID).Scan(&exists)
	return exists, err
}

// Message Repository Implementation
func (db *PostgresStore) ApplyMessageSideEffects(ctx context.Context, conversationID, senderID, content string) (*models.Message, *models.ConversationSummary, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	message := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, content, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING created_at`, message.ID, conversationID, senderID, content).Scan(&message.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to save message: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE conversations
		SET last_message_id = $2, last_message_content = $3, last_message_sender_id = $4, last_message_at = $5
		WHERE id = $1`, conversationID, message.ID, content, senderID, message.CreatedAt)
	if err != nil {
		return nil, nil, err
	}

	// New last message: nobody has seen it yet, every recipient owes a read.
	if _, err := tx.Exec(ctx, `
		UPDATE participants SET seen_last = false WHERE conversation_id = $1`, conversationID); err != nil {
		return nil, nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE participants SET unread_count = unread_count + 1
		WHERE conversation_id = $1 AND user_id <> $2`, conversationID, senderID); err != nil {
		return nil, nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE participants SET unread_count = 0
		WHERE conversation_id = $1 AND user_id = $2`, conversationID, senderID); err != nil {
		return nil, nil, err
	}

	summary, err := db.loadSummary(ctx, tx, conversationID)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}

	return message, summary, nil
}

func (db *PostgresStore) ApplySeenSideEffects(ctx context.Context, conversationID, userID string) (*models.ConversationSummary, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var lastMessageID, lastSenderID *string
	err = tx.QueryRow(ctx, `
		SELECT last_message_id, last_message_sender_id FROM conversations WHERE id = $1 FOR UPDATE`,
		conversationID).Scan(&lastMessageID, &lastSenderID)
	if err != nil {
		return nil, err
	}

	// Nothing to mark, or the caller sent the last message themselves.
	if lastMessageID == nil || (lastSenderID != nil && *lastSenderID == userID) {
		return nil, nil
	}

	tag, err := tx.Exec(ctx, `
		UPDATE participants SET seen_last = true, unread_count = 0
		WHERE conversation_id = $1 AND user_id = $2`, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("user %s is not a participant of conversation %s", userID, conversationID)
	}

	summary, err := db.loadSummary(ctx, tx, conversationID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return summary, nil
}

func (db *PostgresStore) LoadMessagePage(ctx context.Context, conversationID string, limit int, before *time.Time) ([]*models.Message, *time.Time, error) {
	query := `
		SELECT id, conversation_id, sender_id, content, created_at
		FROM messages
		WHERE conversation_id = $1 AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := db.pool.Query(ctx, query, conversationID, before, limit+1)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var nextCursor *time.Time
	if len(messages) > limit {
		cursor := messages[len(messages)-1].CreatedAt
		nextCursor = &cursor
		messages = messages[:limit]
	}

	// Reverse to show oldest first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nextCursor, nil
}

func (db *PostgresStore) loadConversation(ctx context.Context, q queryer, id string) (*models.Conversation, error) {
	query := `
		SELECT id, type, COALESCE(name, ''), created_by,
		       last_message_id, last_message_content, last_message_sender_id,
		       last_message_at, created_at
		FROM conversations WHERE id = $1`

	conversation := &models.Conversation{
		UnreadCounts: make(map[string]int),
		SeenBy:       []string{},
	}
	var lastMessageID, lastContent, lastSenderID *string
	var lastMessageAt *time.Time
	err := q.QueryRow(ctx, query, id).Scan(
		&conversation.ID, &conversation.Type, &conversation.Name, &conversation.CreatedBy,
		&lastMessageID, &lastContent, &lastSenderID, &lastMessageAt, &conversation.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastMessageAt != nil {
		conversation.LastMessageAt = *lastMessageAt
	}
	if lastMessageID != nil {
		conversation.LastMessage = &models.LastMessage{
			ID:        *lastMessageID,
			Content:   derefString(lastContent),
			SenderID:  derefString(lastSenderID),
			CreatedAt: conversation.LastMessageAt,
		}
	}

	rows, err := q.Query(ctx, `
		SELECT p.user_id, u.display_name, COALESCE(u.avatar_url, ''), p.joined_at, p.unread_count, p.seen_last
		FROM participants p
		JOIN users u ON u.id = p.user_id
		WHERE p.conversation_id = $1
		ORDER BY p.joined_at`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p := &models.Participant{}
		var unread int
		var seenLast bool
		if err := rows.Scan(&p.UserID, &p.DisplayName, &p.AvatarURL, &p.JoinedAt, &unread, &seenLast); err != nil {
			return nil, err
		}
		conversation.Participants = append(conversation.Participants, p)
		conversation.UnreadCounts[p.UserID] = unread
		if seenLast && conversation.LastMessage != nil {
			conversation.SeenBy = append(conversation.SeenBy, p.UserID)
		}
	}

	return conversation, rows.Err()
}

func (db *PostgresStore) loadSummary(ctx context.Context, q queryer, id string) (*models.ConversationSummary, error) {
	conversation, err := db.loadConversation(ctx, q, id)
	if err != nil {
		return nil, err
	}

	return &models.ConversationSummary{
		ID:            conversation.ID,
		LastMessage:   conversation.LastMessage,
		LastMessageAt: conversation.LastMessageAt,
		UnreadCounts:  conversation.UnreadCounts,
		SeenBy:        conversation.SeenBy,
	}, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
