package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// Sessions hands out request-scoped access to the query layer.
type Sessions interface {
	// WithSession borrows one connection from the pool, runs fn against a
	// repository bound to it and returns the connection before returning,
	// whatever fn does.
	WithSession(ctx context.Context, fn func(ClimateRepository) error) error
}

type poolSessions struct {
	db *sql.DB
}

func NewSessions(db *sql.DB) Sessions {
	return &poolSessions{db: db}
}

func (s *poolSessions) WithSession(ctx context.Context, fn func(ClimateRepository) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Error("release connection", "error", err)
		}
	}()
	return fn(NewRepository(conn))
}
