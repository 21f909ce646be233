package session

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/tailored-agentic-units/registry-agent/core/protocol"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	session_id TEXT    NOT NULL,
	seq        INTEGER NOT NULL,
	body       BLOB    NOT NULL,
	PRIMARY KEY (session_id, seq)
);
CREATE TABLE IF NOT EXISTS checkpoints (
	session_id TEXT    PRIMARY KEY,
	body       BLOB    NOT NULL,
	updated_at INTEGER NOT NULL
);
`

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA temp_store=MEMORY",
}

type sqliteStore struct {
	pool  *sqlitex.Pool
	codec *codec
	path  string
}

// NewSQLiteStore opens (creating if needed) a SQLite-backed Store at path.
// Logs and checkpoints survive process restarts.
func NewSQLiteStore(path string, poolSize int, compression Compression) (Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite path is required", ErrStoreFailed)
	}
	if poolSize <= 0 {
		poolSize = 4
	}

	c, err := newCodec(compression)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}

	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConn,
	})
	if err != nil {
		c.close()
		return nil, fmt.Errorf("%w: opening %s: %w", ErrStoreFailed, path, err)
	}

	return &sqliteStore{pool: pool, codec: c, path: path}, nil
}

func prepareConn(conn *sqlite.Conn) error {
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return sqlitex.ExecuteScript(conn, schema, nil)
}

func (s *sqliteStore) take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: take connection: %w", ErrStoreFailed, err)
	}
	return conn, nil
}

func (s *sqliteStore) Append(ctx context.Context, id string, msgs ...protocol.Message) (err error) {
	if id == "" {
		return fmt.Errorf("%w: %w", ErrStoreFailed, ErrEmptyID)
	}
	if len(msgs) == 0 {
		return nil
	}

	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", ErrStoreFailed, err)
	}
	defer endTransaction(&err)

	var next int64
	err = sqlitex.Execute(conn, "SELECT COALESCE(MAX(seq), -1) + 1 FROM messages WHERE session_id = ?", &sqlitex.ExecOptions{
		Args: []any{id},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			next = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("%w: next sequence: %w", ErrStoreFailed, err)
	}

	for i, msg := range msgs {
		body, encErr := s.codec.encodeMessage(msg)
		if encErr != nil {
			return fmt.Errorf("%w: %w", ErrStoreFailed, encErr)
		}
		err = sqlitex.Execute(conn, "INSERT INTO messages (session_id, seq, body) VALUES (?, ?, ?)", &sqlitex.ExecOptions{
			Args: []any{id, next + int64(i), body},
		})
		if err != nil {
			return fmt.Errorf("%w: insert message: %w", ErrStoreFailed, err)
		}
	}
	return nil
}

func (s *sqliteStore) Get(ctx context.Context, id string) ([]protocol.Message, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var msgs []protocol.Message
	err = sqlitex.Execute(conn, "SELECT body FROM messages WHERE session_id = ? ORDER BY seq", &sqlitex.ExecOptions{
		Args: []any{id},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			body := make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, body)
			msg, err := s.codec.decodeMessage(body)
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: read log: %w", ErrStoreFailed, err)
	}
	return msgs, nil
}

func (s *sqliteStore) Clear(ctx context.Context, id string) (err error) {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", ErrStoreFailed, err)
	}
	defer endTransaction(&err)

	for _, query := range []string{
		"DELETE FROM messages WHERE session_id = ?",
		"DELETE FROM checkpoints WHERE session_id = ?",
	} {
		if err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{Args: []any{id}}); err != nil {
			return fmt.Errorf("%w: clear: %w", ErrStoreFailed, err)
		}
	}
	return nil
}

func (s *sqliteStore) SaveCheckpoint(ctx context.Context, cp Checkpoint) error {
	if cp.SessionID == "" {
		return fmt.Errorf("%w: %w", ErrStoreFailed, ErrEmptyID)
	}

	body, err := s.codec.encode(cp)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}

	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `INSERT INTO checkpoints (session_id, body, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		&sqlitex.ExecOptions{Args: []any{cp.SessionID, body, time.Now().UnixNano()}})
	if err != nil {
		return fmt.Errorf("%w: save checkpoint: %w", ErrStoreFailed, err)
	}
	return nil
}

func (s *sqliteStore) LoadCheckpoint(ctx context.Context, id string) (Checkpoint, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return Checkpoint{}, err
	}
	defer s.pool.Put(conn)

	var (
		cp    Checkpoint
		found bool
	)
	err = sqlitex.Execute(conn, "SELECT body, updated_at FROM checkpoints WHERE session_id = ?", &sqlitex.ExecOptions{
		Args: []any{id},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			body := make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, body)
			if err := s.codec.decode(body, &cp); err != nil {
				return err
			}
			cp.UpdatedAt = time.Unix(0, stmt.ColumnInt64(1))
			found = true
			return nil
		},
	})
	if err != nil {
		return Checkpoint{}, fmt.Errorf("%w: load checkpoint: %w", ErrStoreFailed, err)
	}
	if !found {
		return Checkpoint{}, fmt.Errorf("%w: %s", ErrNoCheckpoint, id)
	}
	return cp, nil
}

func (s *sqliteStore) Close() error {
	defer s.codec.close()
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %w", ErrStoreFailed, s.path, err)
	}
	return nil
}
