package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nikitakapustkin/bankevents/libs/db"
	"github.com/nikitakapustkin/bankevents/libs/events"
	"github.com/nikitakapustkin/bankevents/libs/outbox"
)

type PGRepository struct {
	pool   *db.Pool
	writer *outbox.Writer
	topic  string
}

func NewPGRepository(pool *db.Pool, writer *outbox.Writer, topic string) *PGRepository {
	return &PGRepository{pool: pool, writer: writer, topic: topic}
}

func (r *PGRepository) CreateUserWithEvent(ctx context.Context, u User, envelope []byte, eventID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin registration tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO users (id, login, name, age, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.Login, u.Name, u.Age, u.PasswordHash, u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrLoginTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}

	if _, err := r.writer.Record(ctx, tx, r.topic, u.ID.String(), events.TypeUserCreated, envelope); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
