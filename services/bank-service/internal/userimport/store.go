// Package userimport mirrors users announced by the security service into the
// bank's own users table, so account operations can validate owners locally.
package userimport

import (
	"context"

	"github.com/google/uuid"

	"github.com/nikitakapustkin/bankevents/libs/db"
)

type User struct {
	ID    uuid.UUID
	Login string
	Name  string
	Age   *int
}

type PGStore struct {
	pool *db.Pool
}

func NewPGStore(pool *db.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Upsert inserts the mirrored user; an existing id is left untouched. Returns
// whether a row was written.
func (s *PGStore) Upsert(ctx context.Context, u User) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, login, name, age)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, u.ID, u.Login, u.Name, u.Age)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
