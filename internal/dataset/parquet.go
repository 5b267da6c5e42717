package dataset

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/apache/arrow/go/v7/arrow"
	"github.com/apache/arrow/go/v7/arrow/array"
	"github.com/apache/arrow/go/v7/arrow/memory"
	"github.com/apache/arrow/go/v7/parquet"
	"github.com/apache/arrow/go/v7/parquet/pqarrow"
)

// loadParquet reads a whole Parquet file into columns. The file is read
// into memory so sealed files need no temporary copy.
func (l *FileLoader) loadParquet(ctx context.Context, path string, forceDate map[string]bool) ([]*Column, error) {
	data, err := l.store.ReadFile(path)
	if err != nil {
		return nil, err
	}

	mem := memory.NewGoAllocator()
	tbl, err := pqarrow.ReadTable(ctx, bytes.NewReader(data), parquet.NewReaderProperties(mem), pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	defer tbl.Release()

	cols := make([]*Column, 0, tbl.NumCols())
	for i := 0; i < int(tbl.NumCols()); i++ {
		col := tbl.Column(i)
		cells := make([]any, 0, tbl.NumRows())
		for _, chunk := range col.Data().Chunks() {
			for row := 0; row < chunk.Len(); row++ {
				v, err := arrowCell(chunk, row)
				if err != nil {
					return nil, fmt.Errorf("column %s: %w", col.Name(), err)
				}
				cells = append(cells, normalizeCell(v))
			}
		}
		cols = append(cols, inferColumn(col.Name(), cells, forceDate[col.Name()]))
	}
	return cols, nil
}

// arrowCell returns the value at row as nil, string, bool, int64, float64
// or time.Time.
func arrowCell(a arrow.Array, row int) (any, error) {
	if a.IsNull(row) {
		return nil, nil
	}
	switch a := a.(type) {
	case *array.String:
		return a.Value(row), nil
	case *array.Binary:
		return string(a.Value(row)), nil
	case *array.Boolean:
		return a.Value(row), nil
	case *array.Int8:
		return int64(a.Value(row)), nil
	case *array.Int16:
		return int64(a.Value(row)), nil
	case *array.Int32:
		return int64(a.Value(row)), nil
	case *array.Int64:
		return a.Value(row), nil
	case *array.Uint8:
		return int64(a.Value(row)), nil
	case *array.Uint16:
		return int64(a.Value(row)), nil
	case *array.Uint32:
		return int64(a.Value(row)), nil
	case *array.Uint64:
		return float64(a.Value(row)), nil
	case *array.Float32:
		return float64(a.Value(row)), nil
	case *array.Float64:
		return a.Value(row), nil
	case *array.Date32:
		return time.Unix(int64(a.Value(row))*86400, 0).UTC(), nil
	case *array.Date64:
		return time.UnixMilli(int64(a.Value(row))).UTC(), nil
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return timestamp(int64(a.Value(row)), unit), nil
	default:
		return nil, fmt.Errorf("unsupported arrow type %s", a.DataType())
	}
}

func timestamp(v int64, unit arrow.TimeUnit) time.Time {
	switch unit {
	case arrow.Second:
		return time.Unix(v, 0).UTC()
	case arrow.Millisecond:
		return time.UnixMilli(v).UTC()
	case arrow.Microsecond:
		return time.UnixMicro(v).UTC()
	default:
		return time.Unix(0, v).UTC()
	}
}
