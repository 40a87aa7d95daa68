// Package db runs raw SQL against PostgreSQL and flattens the results into
// plain rows.
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	pgxconn "github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loykin/taskrun/internal/pgconn"
	"github.com/loykin/taskrun/internal/runlog"
)

// ErrClosed is returned by every call after the pool was torn down.
var ErrClosed = errors.New("db: pool closed")

// connectAttempts bounds the initial ping; attempts are spaced by the
// config's CreateRetryInterval.
const connectAttempts = 3

// Row is one result row keyed by column name.
type Row = map[string]any

// ResultSet is the outcome of one statement.
type ResultSet struct {
	Command string `json:"command"`
	Rows    []Row  `json:"rows"`
}

// Client wraps a pgx pool. Any query failure closes the pool.
type Client struct {
	mu     sync.Mutex
	pool   *pgxpool.Pool
	closed bool
	log    *runlog.Log
}

// Open connects using cfg and verifies the connection. log may be nil.
func Open(ctx context.Context, cfg pgconn.Config, log *runlog.Log) (*Client, error) {
	pc, err := cfg.PoolConfig()
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := ping(ctx, pool, cfg.CreateRetryInterval); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Redacted(), err)
	}
	return &Client{pool: pool, log: log}, nil
}

func ping(ctx context.Context, pool *pgxpool.Pool, interval time.Duration) error {
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if err = pool.Ping(ctx); err == nil {
			return nil
		}
		if attempt == connectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return err
}

func (c *Client) debug(entry string, extras ...any) {
	if c.log != nil {
		c.log.Debug(entry, extras...)
	}
}

// Close releases the pool. It is safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.pool.Close()
	}
}

// Exec runs sql, which may hold several statements, and returns every
// result set. On failure the pool is closed before the error is returned.
func (c *Client) Exec(ctx context.Context, sql string) ([]ResultSet, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	sets, err := c.exec(ctx, sql)
	if err != nil {
		c.debug("postgresRawQuery", err.Error())
		c.Close()
		return nil, err
	}
	return sets, nil
}

func (c *Client) exec(ctx context.Context, sql string) ([]ResultSet, error) {
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	results, err := conn.Conn().PgConn().Exec(ctx, sql).ReadAll()
	if err != nil {
		return nil, err
	}
	tm := conn.Conn().TypeMap()
	sets := make([]ResultSet, 0, len(results))
	for _, r := range results {
		set, err := decodeResult(tm, r)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	return sets, nil
}

func decodeResult(tm *pgtype.Map, r *pgxconn.Result) (ResultSet, error) {
	set := ResultSet{Command: commandName(r.CommandTag.String()), Rows: make([]Row, 0, len(r.Rows))}
	for _, raw := range r.Rows {
		row := make(Row, len(r.FieldDescriptions))
		for i, fd := range r.FieldDescriptions {
			v, err := decodeValue(tm, fd, raw[i])
			if err != nil {
				return ResultSet{}, fmt.Errorf("decode column %s: %w", fd.Name, err)
			}
			row[fd.Name] = v
		}
		set.Rows = append(set.Rows, row)
	}
	return set, nil
}

func decodeValue(tm *pgtype.Map, fd pgxconn.FieldDescription, src []byte) (any, error) {
	if src == nil {
		return nil, nil
	}
	t, ok := tm.TypeForOID(fd.DataTypeOID)
	if !ok {
		return string(src), nil
	}
	v, err := t.Codec.DecodeValue(tm, fd.DataTypeOID, fd.Format, src)
	if err != nil {
		return nil, err
	}
	if u, ok := v.([16]byte); ok {
		return fmt.Sprintf("%x-%x-%x-%x-%x", u[0:4], u[4:6], u[6:8], u[8:10], u[10:16]), nil
	}
	return v, nil
}

func commandName(tag string) string {
	for i := 0; i < len(tag); i++ {
		if tag[i] == ' ' {
			return tag[:i]
		}
	}
	return tag
}

// Flatten reduces result sets to one row list: a single statement yields
// its rows, several yield the rows of the first SELECT. ok is false when
// several statements ran and none was a SELECT.
func Flatten(sets []ResultSet) (rows []Row, ok bool) {
	switch len(sets) {
	case 0:
		return []Row{}, true
	case 1:
		return sets[0].Rows, true
	}
	for _, s := range sets {
		if s.Command == "SELECT" {
			return s.Rows, true
		}
	}
	return []Row{}, false
}

// RawQueryRows runs sql and returns the flattened rows.
func (c *Client) RawQueryRows(ctx context.Context, sql string) ([]Row, error) {
	c.debug("postgresRawQueryJSON", sql)
	sets, err := c.Exec(ctx, sql)
	if err != nil {
		return nil, err
	}
	rows, _ := Flatten(sets)
	return rows, nil
}

// RawQuery runs sql and returns the flattened rows as JSON. When several
// statements ran and none selected anything, every result set is returned.
func (c *Client) RawQuery(ctx context.Context, sql string) (string, error) {
	c.debug("postgresRawQuery", sql)
	sets, err := c.Exec(ctx, sql)
	if err != nil {
		return "", err
	}
	var payload any = sets
	if rows, ok := Flatten(sets); ok {
		payload = rows
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode rows: %w", err)
	}
	return string(b), nil
}
