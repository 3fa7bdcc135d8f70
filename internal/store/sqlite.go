package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"mediawiki-watchlist/internal/model"
)

// SQLite 封装 *sql.DB，基于 modernc.org/sqlite（纯 Go 实现），SQL 由 squirrel 构造。
type SQLite struct {
	db *sql.DB
}

// OpenSQLite 打开 SQLite 数据库并执行自动迁移。
func OpenSQLite(path string) (*SQLite, error) {
	// modernc sqlite 的 DSN 可直接使用文件路径，或以 'file:...' 前缀表示
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// migrate 执行建表语句，保持幂等。started_at 以 Unix 纳秒保存。
func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
            id TEXT PRIMARY KEY,
            started_at INTEGER NOT NULL,
            total INTEGER NOT NULL,
            wikis TEXT NOT NULL,
            error TEXT
        );`,
		`CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at);`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("exec migrate: %w", err)
		}
	}
	return nil
}

// RecordRun 写入一条运行记录。
func (s *SQLite) RecordRun(ctx context.Context, r model.Run) error {
	r = withID(r)
	wikis, err := json.Marshal(r.Wikis)
	if err != nil {
		return fmt.Errorf("encode wiki counts: %w", err)
	}
	q, args, err := sq.Insert("runs").
		Columns("id", "started_at", "total", "wikis", "error").
		Values(r.ID, r.StartedAt.UnixNano(), r.Total, string(wikis), r.Error).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}
	return nil
}

// Recent 按 started_at 倒序返回最近的记录。
func (s *SQLite) Recent(ctx context.Context, limit int) ([]model.Run, error) {
	b := sq.Select("id", "started_at", "total", "wikis", "COALESCE(error,'')").
		From("runs").
		OrderBy("started_at DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	q, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()
	var out []model.Run
	for rows.Next() {
		var (
			r       model.Run
			started int64
			wikis   string
		)
		if err := rows.Scan(&r.ID, &started, &r.Total, &wikis, &r.Error); err != nil {
			return nil, fmt.Errorf("scan runs: %w", err)
		}
		r.StartedAt = time.Unix(0, started).UTC()
		if err := json.Unmarshal([]byte(wikis), &r.Wikis); err != nil {
			return nil, fmt.Errorf("decode wiki counts of %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}
