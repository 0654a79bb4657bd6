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


package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"keyframe-search/internal/pipeline/common"
	pkgerrors "keyframe-search/pkg/errors"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS video_metadata (
	video_name    TEXT PRIMARY KEY,
	title         TEXT NOT NULL DEFAULT '',
	author        TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	keywords      TEXT[] NOT NULL DEFAULT '{}',
	length        INT  NOT NULL DEFAULT 0,
	publish_date  TIMESTAMPTZ NOT NULL,
	watch_url     TEXT NOT NULL DEFAULT '',
	thumbnail_url TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS frame_data (
	video_name TEXT NOT NULL REFERENCES video_metadata(video_name) ON DELETE CASCADE,
	n          INT  NOT NULL,
	pts_time   DOUBLE PRECISION NOT NULL DEFAULT 0,
	fps        DOUBLE PRECISION NOT NULL DEFAULT 0,
	frame_idx  INT  NOT NULL DEFAULT 0,
	PRIMARY KEY (video_name, n)
);
CREATE INDEX IF NOT EXISTS video_metadata_publish_date_idx ON video_metadata (publish_date);`

const videoColumns = `video_name, title, author, description, keywords, length, publish_date, watch_url, thumbnail_url`

// pgStore PostgreSQL 实现
type pgStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore 创建基于 PostgreSQL 的元数据存储
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
		return nil, fmt.Errorf("初始化元数据表失败: %w", err)
	}
	return &pgStore{pool: pool}, nil
}

func scanVideo(row pgx.Row) (common.VideoMetadata, error) {
	var v common.VideoMetadata
	err := row.Scan(&v.VideoName, &v.Title, &v.Author, &v.Description, &v.Keywords,
		&v.Length, &v.PublishDate, &v.WatchURL, &v.ThumbnailURL)
	return v, err
}

// QueryVideos 动态拼接条件；逐帧数据一次性按视频名批量取回
func (s *pgStore) QueryVideos(ctx context.Context, filter common.MetadataFilter) ([]common.VideoMetadata, error) {
	var conds []string
	var args []any
	if len(filter.VideoNames) > 0 {
		args = append(args, filter.VideoNames)
		conds = append(conds, fmt.Sprintf("video_name = ANY($%d)", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conds = append(conds, fmt.Sprintf("publish_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conds = append(conds, fmt.Sprintf("publish_date <= $%d", len(args)))
	}
	sql := "SELECT " + videoColumns + " FROM video_metadata"
	if len(conds) > 0 {
		sql += " WHERE " + strings.Join(conds, " AND ")
	}
	sql += " ORDER BY video_name"

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	videos := make([]common.VideoMetadata, 0)
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		videos = append(videos, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		return videos, nil
	}
	return videos, s.attachFrames(ctx, videos)
}

func (s *pgStore) attachFrames(ctx context.Context, videos []common.VideoMetadata) error {
	pos := make(map[string]int, len(videos))
	names := make([]string, len(videos))
	for i, v := range videos {
		pos[v.VideoName] = i
		names[i] = v.VideoName
	}
	rows, err := s.pool.Query(ctx,
		`SELECT video_name, n, pts_time, fps, frame_idx FROM frame_data WHERE video_name = ANY($1) ORDER BY video_name, n`, names)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var fd common.FrameData
		if err := rows.Scan(&name, &fd.N, &fd.PtsTime, &fd.FPS, &fd.FrameIdx); err != nil {
			return err
		}
		i := pos[name]
		videos[i].FrameData = append(videos[i].FrameData, fd)
	}
	return rows.Err()
}

// ListVideos 实现 Store
func (s *pgStore) ListVideos(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT video_name FROM video_metadata ORDER BY video_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	names := make([]string, 0)
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// GetVideo 实现 Store
func (s *pgStore) GetVideo(ctx context.Context, videoName string) (*common.VideoMetadata, error) {
	v, err := scanVideo(s.pool.QueryRow(ctx,
		"SELECT "+videoColumns+" FROM video_metadata WHERE video_name = $1", videoName))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, pkgerrors.NotFoundf("video %s", videoName)
	}
	if err != nil {
		return nil, err
	}
	videos := []common.VideoMetadata{v}
	if err := s.attachFrames(ctx, videos); err != nil {
		return nil, err
	}
	return &videos[0], nil
}

// GetFrame 实现 Store
func (s *pgStore) GetFrame(ctx context.Context, videoName string, n int) (*common.FrameData, error) {
	var fd common.FrameData
	err := s.pool.QueryRow(ctx,
		`SELECT n, pts_time, fps, frame_idx FROM frame_data WHERE video_name = $1 AND n = $2`, videoName, n).
		Scan(&fd.N, &fd.PtsTime, &fd.FPS, &fd.FrameIdx)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, pkgerrors.NotFoundf("frame %d of video %s", n, videoName)
	}
	if err != nil {
		return nil, err
	}
	return &fd, nil
}

// Put 在事务中覆盖视频及其逐帧数据
func (s *pgStore) Put(ctx context.Context, v common.VideoMetadata) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	keywords := v.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO video_metadata (`+videoColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (video_name) DO UPDATE SET
			title = EXCLUDED.title, author = EXCLUDED.author, description = EXCLUDED.description,
			keywords = EXCLUDED.keywords, length = EXCLUDED.length, publish_date = EXCLUDED.publish_date,
			watch_url = EXCLUDED.watch_url, thumbnail_url = EXCLUDED.thumbnail_url`,
		v.VideoName, v.Title, v.Author, v.Description, keywords, v.Length, v.PublishDate, v.WatchURL, v.ThumbnailURL)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM frame_data WHERE video_name = $1`, v.VideoName); err != nil {
		return err
	}
	if len(v.FrameData) > 0 {
		rows := make([][]any, 0, len(v.FrameData))
		for _, fd := range v.FrameData {
			rows = append(rows, []any{v.VideoName, fd.N, fd.PtsTime, fd.FPS, fd.FrameIdx})
		}
		_, err = tx.CopyFrom(ctx, pgx.Identifier{"frame_data"},
			[]string{"video_name", "n", "pts_time", "fps", "frame_idx"}, pgx.CopyFromRows(rows))
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
