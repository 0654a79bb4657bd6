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


package vector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

const pgvectorSchema = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS keyframe_vector_indexes (
	name      TEXT PRIMARY KEY,
	dimension INT  NOT NULL,
	distance  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS keyframe_vectors (
	index_name TEXT   NOT NULL REFERENCES keyframe_vector_indexes(name),
	id         TEXT   NOT NULL,
	embedding  vector NOT NULL,
	metadata   JSONB  NOT NULL DEFAULT '{}',
	PRIMARY KEY (index_name, id)
);`

// PGVectorStore 基于 PostgreSQL + pgvector 的向量存储，所有索引共用一张表
type PGVectorStore struct {
	pool *pgxpool.Pool
}

// NewPGVectorStore 连接数据库并确保表结构存在
func NewPGVectorStore(ctx context.Context, dsn string) (*PGVectorStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, pgvectorSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("初始化 pgvector 表失败: %w", err)
	}
	return &PGVectorStore{pool: pool}, nil
}

// Create 登记索引
func (s *PGVectorStore) Create(ctx context.Context, idx *Index) error {
	distance := idx.Distance
	if distance == "" {
		distance = "cosine"
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO keyframe_vector_indexes (name, dimension, distance) VALUES ($1, $2, $3) ON CONFLICT (name) DO NOTHING`,
		idx.Name, idx.Dimension, distance)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("索引已存在: %s", idx.Name)
	}
	return nil
}

// ListIndexes 列出所有索引
func (s *PGVectorStore) ListIndexes(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT name FROM keyframe_vector_indexes ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (s *PGVectorStore) index(ctx context.Context, name string) (*Index, error) {
	idx := &Index{Name: name}
	err := s.pool.QueryRow(ctx, `SELECT dimension, distance FROM keyframe_vector_indexes WHERE name = $1`, name).
		Scan(&idx.Dimension, &idx.Distance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// Add 批量写入，同 ID 覆盖
func (s *PGVectorStore) Add(ctx context.Context, indexName string, vectors []*Vector) error {
	idx, err := s.index(ctx, indexName)
	if err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, v := range vectors {
		if len(v.Values) != idx.Dimension {
			return fmt.Errorf("向量 %s 维度不匹配: 期望 %d, 实际 %d", v.ID, idx.Dimension, len(v.Values))
		}
		meta, err := json.Marshal(v.Metadata)
		if err != nil {
			return err
		}
		batch.Queue(`INSERT INTO keyframe_vectors (index_name, id, embedding, metadata) VALUES ($1, $2, $3, $4)
			ON CONFLICT (index_name, id) DO UPDATE SET embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata`,
			indexName, v.ID, pgvector.NewVector(v.Values), meta)
	}
	return s.pool.SendBatch(ctx, batch).Close()
}

// Search 余弦索引按 1 - (embedding <=> q) 计分，欧氏索引按 1/(1 + (embedding <-> q))
func (s *PGVectorStore) Search(ctx context.Context, indexName string, query []float32, options *SearchOptions) ([]*SearchResult, error) {
	idx, err := s.index(ctx, indexName)
	if err != nil {
		return nil, err
	}
	if len(query) != idx.Dimension {
		return nil, fmt.Errorf("查询向量维度不匹配: 期望 %d, 实际 %d", idx.Dimension, len(query))
	}
	op, score := "<=>", "1 - (embedding <=> $2)"
	if idx.Distance == "euclidean" {
		op, score = "<->", "1 / (1 + (embedding <-> $2))"
	}
	exclude := ""
	if options != nil {
		exclude = options.ExcludeID
	}
	sql := fmt.Sprintf(`SELECT id, %s AS score, metadata FROM keyframe_vectors
		WHERE index_name = $1 AND id <> $3
		ORDER BY embedding %s $2 LIMIT $4`, score, op)
	rows, err := s.pool.Query(ctx, sql, indexName, pgvector.NewVector(query), exclude, options.topK())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*SearchResult
	for rows.Next() {
		r := &SearchResult{}
		var meta []byte
		if err := rows.Scan(&r.ID, &r.Score, &meta); err != nil {
			return nil, err
		}
		if options != nil && options.Threshold > 0 && r.Score < options.Threshold {
			continue
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &r.Metadata); err != nil {
				return nil, err
			}
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Get 获取向量
func (s *PGVectorStore) Get(ctx context.Context, indexName string, id string) (*Vector, error) {
	var text string
	var meta []byte
	err := s.pool.QueryRow(ctx,
		`SELECT embedding::text, metadata FROM keyframe_vectors WHERE index_name = $1 AND id = $2`,
		indexName, id).Scan(&text, &meta)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrVectorNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var vec pgvector.Vector
	if err := vec.Scan(text); err != nil {
		return nil, err
	}
	v := &Vector{ID: id, Values: vec.Slice()}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &v.Metadata); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Close 关闭连接池
func (s *PGVectorStore) Close() error {
	s.pool.Close()
	return nil
}
