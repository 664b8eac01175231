// Package postgres persists sessions in PostgreSQL through pgx's
// database/sql driver, building queries with squirrel.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/lewisedginton/wallet_chatbot/internal/session"
	"github.com/lewisedginton/wallet_chatbot/pkg/clock"
)

const (
	sessionsTable = "sessions"

	// uniqueViolation is the SQLSTATE for a unique constraint violation.
	uniqueViolation = "23505"
)

var columns = []string{"id", "chat_id", "kind", "state", "data", "expires_at", "created_at"}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store implements session.Store on a sessions table.
type Store struct {
	db    *sql.DB
	clock clock.Clock
}

var _ session.Store = (*Store)(nil)

// New creates a store over db. Times are taken from c, never from NOW(),
// so expiry follows the same clock as the rest of the process.
func New(db *sql.DB, c clock.Clock) *Store {
	if c == nil {
		c = clock.Real{}
	}
	return &Store{db: db, clock: c}
}

// Open creates a pgx pool from connString and returns it together with a
// database/sql handle on top of it.
func Open(ctx context.Context, connString string) (*pgxpool.Pool, *sql.DB, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, nil, fmt.Errorf("parse database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, stdlib.OpenDBFromPool(pool), nil
}

func (s *Store) Insert(ctx context.Context, sess *session.Session) error {
	data, err := marshalData(sess.Data)
	if err != nil {
		return err
	}

	query, args, err := psql.Insert(sessionsTable).
		Columns(columns...).
		Values(sess.ID, sess.ChatID, string(sess.Kind), sess.State, data, sess.ExpiresAt, sess.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return session.ErrDuplicateID
		}
		return &session.StoreError{Op: "insert", Err: err}
	}
	return nil
}

func (s *Store) FindMostRecentActive(ctx context.Context, chatID string, filter session.KindFilter) (*session.Session, error) {
	q := psql.Select(columns...).
		From(sessionsTable).
		Where(sq.Eq{"chat_id": chatID}).
		Where(sq.Gt{"expires_at": s.clock.Now()})
	if len(filter.Include) > 0 {
		q = q.Where(sq.Eq{"kind": kindStrings(filter.Include)})
	}
	if len(filter.Exclude) > 0 {
		q = q.Where(sq.NotEq{"kind": kindStrings(filter.Exclude)})
	}

	query, args, err := q.OrderBy("created_at DESC").Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	return s.queryOne(ctx, "find active", query, args)
}

func (s *Store) FindByID(ctx context.Context, id string) (*session.Session, error) {
	query, args, err := psql.Select(columns...).
		From(sessionsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	return s.queryOne(ctx, "find by id", query, args)
}

// Update merges data server-side with the jsonb || operator, so a
// concurrent writer of other keys is never clobbered.
func (s *Store) Update(ctx context.Context, id string, upd session.Update) (*session.Session, error) {
	q := psql.Update(sessionsTable).
		Where(sq.Eq{"id": id}).
		Where(sq.Gt{"expires_at": s.clock.Now()}).
		Suffix("RETURNING " + strings.Join(columns, ", "))

	touched := false
	if upd.State != nil {
		q = q.Set("state", *upd.State)
		touched = true
	}
	if len(upd.Data) > 0 {
		patch, err := marshalData(upd.Data)
		if err != nil {
			return nil, err
		}
		q = q.Set("data", sq.Expr("data || ?::jsonb", patch))
		touched = true
	}
	if !touched {
		q = q.Set("state", sq.Expr("state"))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}
	return s.queryOne(ctx, "update", query, args)
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	query, args, err := psql.Delete(sessionsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return false, fmt.Errorf("build delete: %w", err)
	}
	n, err := s.exec(ctx, "delete", query, args)
	return n > 0, err
}

func (s *Store) DeleteByChatAndKind(ctx context.Context, chatID string, kind session.Kind) (bool, error) {
	query, args, err := psql.Delete(sessionsTable).
		Where(sq.Eq{"chat_id": chatID, "kind": string(kind)}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build delete: %w", err)
	}
	n, err := s.exec(ctx, "delete by kind", query, args)
	return n > 0, err
}

func (s *Store) ExtendExpiry(ctx context.Context, id string, d time.Duration) (bool, error) {
	now := s.clock.Now()
	query, args, err := psql.Update(sessionsTable).
		Set("expires_at", now.Add(d)).
		Where(sq.Eq{"id": id}).
		Where(sq.Gt{"expires_at": now}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build extend: %w", err)
	}
	n, err := s.exec(ctx, "extend", query, args)
	return n > 0, err
}

func (s *Store) DeleteExpiredBefore(ctx context.Context, ts time.Time) (int64, error) {
	query, args, err := psql.Delete(sessionsTable).Where(sq.Lt{"expires_at": ts}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sweep: %w", err)
	}
	return s.exec(ctx, "delete expired", query, args)
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &session.StoreError{Op: "ping", Err: err}
	}
	return nil
}

func (s *Store) exec(ctx context.Context, op, query string, args []any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, &session.StoreError{Op: op, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &session.StoreError{Op: op, Err: err}
	}
	return n, nil
}

func (s *Store) queryOne(ctx context.Context, op, query string, args []any) (*session.Session, error) {
	var (
		sess session.Session
		kind string
		data []byte
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&sess.ID,
		&sess.ChatID,
		&kind,
		&sess.State,
		&data,
		&sess.ExpiresAt,
		&sess.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrSessionNotFound
	}
	if err != nil {
		return nil, &session.StoreError{Op: op, Err: err}
	}

	sess.Kind = session.Kind(kind)
	sess.Data = session.Data{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &sess.Data); err != nil {
			return nil, &session.StoreError{Op: op, Err: fmt.Errorf("unmarshaling data: %w", err)}
		}
	}
	return &sess, nil
}

func marshalData(d session.Data) (string, error) {
	if d == nil {
		d = session.Data{}
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("marshaling session data: %w", err)
	}
	return string(raw), nil
}

func kindStrings(kinds []session.Kind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
