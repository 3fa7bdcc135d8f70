package store

import (
	"context"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"mediawiki-watchlist/internal/model"
)

const runPrefix = "run:"

// LevelDB 以 "run:<20 位纳秒时间戳>:<id>" 为键保存 JSON 记录，键序即时间序。
type LevelDB struct {
	db *leveldb.DB
}

// OpenLevelDB 打开（或创建）path 目录下的 LevelDB。
func OpenLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &LevelDB{db: db}, nil
}

func (s *LevelDB) Close() error { return s.db.Close() }

func runKey(r model.Run) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", runPrefix, r.StartedAt.UnixNano(), r.ID))
}

// RecordRun 写入一条运行记录。
func (s *LevelDB) RecordRun(ctx context.Context, r model.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r = withID(r)
	val, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", r.ID, err)
	}
	if err := s.db.Put(runKey(r), val, nil); err != nil {
		return fmt.Errorf("put run %s: %w", r.ID, err)
	}
	return nil
}

// Recent 从最新的键向前遍历。
func (s *LevelDB) Recent(ctx context.Context, limit int) ([]model.Run, error) {
	it := s.db.NewIterator(util.BytesPrefix([]byte(runPrefix)), nil)
	defer it.Release()
	var out []model.Run
	for ok := it.Last(); ok; ok = it.Prev() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var r model.Run
		if err := json.Unmarshal(it.Value(), &r); err != nil {
			return nil, fmt.Errorf("decode run %s: %w", it.Key(), err)
		}
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}
