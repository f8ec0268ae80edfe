package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	arrowmem "github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/lancedb/lancedb-go/pkg/contracts"
	"github.com/lancedb/lancedb-go/pkg/lancedb"
	"go.uber.org/zap"

	"github.com/ngoclaw/agentcore/internal/domain/memory"
)

const tableName = "memories"

// Metadata keys promoted to their own columns so LanceDB can evaluate the
// manager's filters as SQL push-down instead of post-filtering.
var columnarMeta = []string{memory.MetaScope, memory.MetaType, memory.MetaGoalID}

// LanceDBVectorStore implements memory.VectorStore on LanceDB.
type LanceDBVectorStore struct {
	conn      contracts.IConnection
	table     contracts.ITable
	schema    *arrow.Schema
	dimension int
	logger    *zap.Logger
}

// NewLanceDBVectorStore opens (or creates) the memories table under
// storePath with the given embedding dimension.
func NewLanceDBVectorStore(storePath string, dimension int, logger *zap.Logger) (*LanceDBVectorStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	absPath, err := expandPath(storePath)
	if err != nil {
		return nil, fmt.Errorf("failed to expand store path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	ctx := context.Background()
	conn, err := lancedb.Connect(ctx, absPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to LanceDB at %s: %w", absPath, err)
	}

	fields := []arrow.Field{
		{Name: "id", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "vector", Type: arrow.FixedSizeListOf(int32(dimension), arrow.PrimitiveTypes.Float32), Nullable: false},
		{Name: "scope", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "type", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "goal_id", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "metadata", Type: arrow.BinaryTypes.String, Nullable: true},
	}
	arrowSchema := arrow.NewSchema(fields, nil)

	table, err := openOrCreateTable(ctx, conn, arrowSchema, logger)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open/create table: %w", err)
	}

	logger.Info("LanceDB vector store initialized",
		zap.String("path", absPath),
		zap.Int("dimension", dimension),
	)

	return &LanceDBVectorStore{
		conn:      conn,
		table:     table,
		schema:    arrowSchema,
		dimension: dimension,
		logger:    logger,
	}, nil
}

func openOrCreateTable(ctx context.Context, conn contracts.IConnection, arrowSchema *arrow.Schema, logger *zap.Logger) (contracts.ITable, error) {
	table, err := conn.OpenTable(ctx, tableName)
	if err == nil {
		logger.Info("Opened existing LanceDB table", zap.String("table", tableName))
		return table, nil
	}

	logger.Info("Creating new LanceDB table", zap.String("table", tableName))
	schema, err := lancedb.NewSchema(arrowSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to create LanceDB schema: %w", err)
	}
	return conn.CreateTable(ctx, tableName, schema)
}

// Upsert replaces any existing row with the record's id, then inserts.
func (s *LanceDBVectorStore) Upsert(ctx context.Context, rec memory.VectorRecord) error {
	if len(rec.Vector) != s.dimension {
		return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dimension, len(rec.Vector))
	}

	if err := s.table.Delete(ctx, fmt.Sprintf("id = '%s'", escapeSQL(rec.ID))); err != nil {
		s.logger.Debug("pre-upsert delete failed (row may not exist)", zap.String("id", rec.ID), zap.Error(err))
	}

	record, err := s.recToArrow(rec)
	if err != nil {
		return fmt.Errorf("failed to build Arrow record: %w", err)
	}
	defer record.Release()

	if err := s.table.Add(ctx, record, nil); err != nil {
		return fmt.Errorf("LanceDB insert failed: %w", err)
	}
	s.logger.Debug("vector record upserted", zap.String("id", rec.ID))
	return nil
}

// Search performs similarity search with the filter pushed down as SQL over
// the columnar metadata fields.
func (s *LanceDBVectorStore) Search(ctx context.Context, vector []float32, topK int, filter memory.Filter) ([]memory.VectorMatch, error) {
	filterExpr := buildFilterExpr(filter)

	var rows []map[string]interface{}
	var err error
	if filterExpr != "" {
		rows, err = s.table.VectorSearchWithFilter(ctx, "vector", vector, topK, filterExpr)
	} else {
		rows, err = s.table.VectorSearch(ctx, "vector", vector, topK)
	}
	if err != nil {
		return nil, fmt.Errorf("LanceDB vector search failed: %w", err)
	}

	matches := make([]memory.VectorMatch, 0, len(rows))
	for _, row := range rows {
		id, ok := row["id"].(string)
		if !ok {
			continue
		}
		match := memory.VectorMatch{ID: id}
		// LanceDB reports L2 distance; fold it into a [0,1] similarity.
		if d, ok := toFloat64(row["_distance"]); ok {
			match.Similarity = 1.0 / (1.0 + d)
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// Delete removes the row with the given id.
func (s *LanceDBVectorStore) Delete(ctx context.Context, id string) error {
	if err := s.table.Delete(ctx, fmt.Sprintf("id = '%s'", escapeSQL(id))); err != nil {
		return fmt.Errorf("LanceDB delete failed: %w", err)
	}
	return nil
}

// Close releases LanceDB resources.
func (s *LanceDBVectorStore) Close() error {
	if s.table != nil {
		s.table.Close()
	}
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}

// ============ internal helpers ============

func (s *LanceDBVectorStore) recToArrow(rec memory.VectorRecord) (arrow.Record, error) {
	pool := arrowmem.NewGoAllocator()

	idB := array.NewStringBuilder(pool)
	idB.Append(rec.ID)
	idArr := idB.NewArray()
	defer idArr.Release()

	vectorArr, err := buildVectorArray(pool, rec.Vector, s.dimension)
	if err != nil {
		return nil, err
	}
	defer vectorArr.Release()

	columnar := make([]arrow.Array, 0, len(columnarMeta))
	extra := make(map[string]string)
	for k, v := range rec.Metadata {
		if !isColumnar(k) {
			extra[k] = v
		}
	}
	for _, key := range columnarMeta {
		b := array.NewStringBuilder(pool)
		b.Append(rec.Metadata[key])
		arr := b.NewArray()
		defer arr.Release()
		columnar = append(columnar, arr)
	}

	metaJSON, _ := json.Marshal(extra)
	metaB := array.NewStringBuilder(pool)
	metaB.Append(string(metaJSON))
	metaArr := metaB.NewArray()
	defer metaArr.Release()

	cols := append([]arrow.Array{idArr, vectorArr}, columnar...)
	cols = append(cols, metaArr)
	return array.NewRecord(s.schema, cols, 1), nil
}

func isColumnar(key string) bool {
	for _, c := range columnarMeta {
		if c == key {
			return true
		}
	}
	return false
}

func buildVectorArray(pool arrowmem.Allocator, vec []float32, dim int) (arrow.Array, error) {
	if len(vec) != dim {
		return nil, fmt.Errorf("vector dimension mismatch: expected %d, got %d", dim, len(vec))
	}

	floatB := array.NewFloat32Builder(pool)
	floatB.AppendValues(vec, nil)
	floatArr := floatB.NewArray()
	defer floatArr.Release()

	listType := arrow.FixedSizeListOf(int32(dim), arrow.PrimitiveTypes.Float32)
	listData := array.NewData(listType, 1, []*arrowmem.Buffer{nil},
		[]arrow.ArrayData{floatArr.Data()}, 0, 0)
	return array.NewFixedSizeListData(listData), nil
}

// buildFilterExpr maps the manager's filter onto the columnar fields. Keys
// that have no column are ignored here; the scoped wrapper's post-filter
// still applies.
func buildFilterExpr(filter memory.Filter) string {
	var parts []string
	for _, key := range columnarMeta {
		accepted := filter[key]
		if len(accepted) == 0 {
			continue
		}
		column := key
		if key == memory.MetaGoalID {
			column = "goal_id"
		}
		if len(accepted) == 1 {
			parts = append(parts, fmt.Sprintf("%s = '%s'", column, escapeSQL(accepted[0])))
			continue
		}
		quoted := make([]string, len(accepted))
		for i, v := range accepted {
			quoted[i] = "'" + escapeSQL(v) + "'"
		}
		parts = append(parts, fmt.Sprintf("%s IN (%s)", column, strings.Join(quoted, ", ")))
	}
	return strings.Join(parts, " AND ")
}

func escapeSQL(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func expandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}
