// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package objects

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"keyframe-search/internal/pipeline/common"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS videos (
	id         BIGSERIAL PRIMARY KEY,
	video_name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS frames (
	id         BIGSERIAL PRIMARY KEY,
	video_id   BIGINT NOT NULL REFERENCES videos(id),
	frame_name TEXT   NOT NULL,
	UNIQUE (video_id, frame_name)
);
CREATE TABLE IF NOT EXISTS objects (
	id         BIGSERIAL PRIMARY KEY,
	frame_id   BIGINT NOT NULL REFERENCES frames(id) ON DELETE CASCADE,
	class_name TEXT   NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	xywhn      DOUBLE PRECISION[] NOT NULL
);
CREATE INDEX IF NOT EXISTS objects_class_name_idx ON objects (class_name, frame_id);`

// pgStore PostgreSQL 实现：videos / frames / objects 三表，帧名以规范化形式存储
type pgStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore 创建基于 PostgreSQL 的检测存储；poolSize<=0 时使用 pgx 默认值
func NewPostgresStore(ctx context.Context, dsn string, poolSize int) (Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if poolSize > 0 {
		config.MaxConns = int32(poolSize)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("初始化检测表失败: %w", err)
	}
	return &pgStore{pool: pool}, nil
}

// FramesWithAllClasses 先按类别分组求出 AND 命中的帧，再取回这些帧的全部检测
func (s *pgStore) FramesWithAllClasses(ctx context.Context, classes []string) ([]common.FrameDetections, error) {
	out := make([]common.FrameDetections, 0)
	if len(classes) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `
		WITH matched AS (
			SELECT frame_id FROM objects
			WHERE class_name = ANY($1)
			GROUP BY frame_id
			HAVING COUNT(DISTINCT class_name) = $2
		)
		SELECT v.video_name, f.frame_name, o.class_name, o.confidence, o.xywhn
		FROM matched m
		JOIN frames f ON f.id = m.frame_id
		JOIN videos v ON v.id = f.video_id
		JOIN objects o ON o.frame_id = f.id
		ORDER BY v.video_name, f.id, o.id`, classes, len(classes))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var video, frame string
		var d common.Detection
		var box []float64
		if err := rows.Scan(&video, &frame, &d.ClassName, &d.Confidence, &box); err != nil {
			return nil, err
		}
		copy(d.XYWHN[:], box)
		id := common.NewFrameIdentity(video, frame)
		if n := len(out); n == 0 || out[n-1].Frame != id {
			out = append(out, common.FrameDetections{Frame: id})
		}
		last := &out[len(out)-1]
		last.Objects = append(last.Objects, d)
	}
	return out, rows.Err()
}

// FrameDetections 实现 Store
func (s *pgStore) FrameDetections(ctx context.Context, frame common.FrameIdentity) ([]common.Detection, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT o.class_name, o.confidence, o.xywhn
		FROM objects o
		JOIN frames f ON f.id = o.frame_id
		JOIN videos v ON v.id = f.video_id
		WHERE v.video_name = $1 AND f.frame_name = $2
		ORDER BY o.id`, frame.VideoName, frame.FrameName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]common.Detection, 0)
	for rows.Next() {
		var d common.Detection
		var box []float64
		if err := rows.Scan(&d.ClassName, &d.Confidence, &box); err != nil {
			return nil, err
		}
		copy(d.XYWHN[:], box)
		out = append(out, d)
	}
	return out, rows.Err()
}

// ClassCounts 实现 Store
func (s *pgStore) ClassCounts(ctx context.Context) ([]common.ClassCount, error) {
	rows, err := s.pool.Query(ctx, `SELECT class_name, COUNT(*) FROM objects GROUP BY class_name ORDER BY class_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]common.ClassCount, 0)
	for rows.Next() {
		var c common.ClassCount
		if err := rows.Scan(&c.ClassName, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Put 在事务中覆盖一帧的检测结果
func (s *pgStore) Put(ctx context.Context, fd common.FrameDetections) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var videoID, frameID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO videos (video_name) VALUES ($1) ON CONFLICT (video_name) DO UPDATE SET video_name = EXCLUDED.video_name RETURNING id`,
		fd.Frame.VideoName).Scan(&videoID)
	if err != nil {
		return err
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO frames (video_id, frame_name) VALUES ($1, $2) ON CONFLICT (video_id, frame_name) DO UPDATE SET frame_name = EXCLUDED.frame_name RETURNING id`,
		videoID, fd.Frame.FrameName).Scan(&frameID)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM objects WHERE frame_id = $1`, frameID); err != nil {
		return err
	}
	rows := make([][]any, 0, len(fd.Objects))
	for _, d := range fd.Objects {
		rows = append(rows, []any{frameID, d.ClassName, d.Confidence, d.XYWHN[:]})
	}
	if len(rows) > 0 {
		_, err = tx.CopyFrom(ctx, pgx.Identifier{"objects"},
			[]string{"frame_id", "class_name", "confidence", "xywhn"}, pgx.CopyFromRows(rows))
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// Close 实现 Store
func (s *pgStore) Close() error {
	s.pool.Close()
	return nil
}
