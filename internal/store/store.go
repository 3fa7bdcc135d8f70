// 包 store 保存每次菜单渲染的统计记录（各 wiki 未读数），
// 支持 SQLite 与 LevelDB 两种后端；只记录数量，不缓存修订号。
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"mediawiki-watchlist/internal/aggregate"
	"mediawiki-watchlist/internal/config"
	"mediawiki-watchlist/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store 为运行记录存储。
type Store interface {
	RecordRun(ctx context.Context, r model.Run) error
	// Recent 按开始时间倒序返回最多 limit 条记录。
	Recent(ctx context.Context, limit int) ([]model.Run, error)
	Close() error
}

// Open 按配置打开存储；未配置 DSN 时返回 nil, nil。
func Open(db config.Database) (Store, error) {
	if db.DSN == "" {
		return nil, nil
	}
	switch strings.ToLower(db.Type) {
	case "", "sqlite":
		s, err := OpenSQLite(db.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "leveldb":
		s, err := OpenLevelDB(db.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", db.Type)
	}
}

// NewRun 根据聚合结果生成一条记录；err 非空时记录错误信息且不含计数。
func NewRun(res aggregate.Result, err error, now time.Time) model.Run {
	r := model.Run{ID: uuid.NewString(), StartedAt: now.UTC()}
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.Total = res.Total()
	r.Wikis = res.Counts()
	return r
}

func withID(r model.Run) model.Run {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now().UTC()
	}
	return r
}
