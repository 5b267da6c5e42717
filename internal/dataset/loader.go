package dataset

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"moneymoved/internal/fiscal"
	"moneymoved/internal/services/storage"
)

// ErrUnsupportedFormat is returned for source formats no loader reads.
var ErrUnsupportedFormat = errors.New("unsupported source format")

// Loader reads the columns of a source. The registry owns naming and
// identity of the resulting dataset.
type Loader interface {
	Load(ctx context.Context, name string, src Source) ([]*Column, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, name string, src Source) ([]*Column, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, name string, src Source) ([]*Column, error) {
	return f(ctx, name, src)
}

// FileLoader reads CSV, SQLite and Parquet sources through Storage, so
// sealed files are decrypted transparently.
type FileLoader struct {
	store    *storage.Storage
	calendar fiscal.Calendar
	logger   *zap.Logger
}

// NewFileLoader creates a FileLoader.
func NewFileLoader(store *storage.Storage, cal fiscal.Calendar, logger *zap.Logger) *FileLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileLoader{store: store, calendar: cal, logger: logger}
}

// Load reads src according to its format and derives fiscal columns when
// FiscalDate is set.
func (l *FileLoader) Load(ctx context.Context, name string, src Source) ([]*Column, error) {
	if src.Path == "" {
		return nil, errors.New("source path is empty")
	}

	forceDate := make(map[string]bool, len(src.DateColumns)+1)
	for _, c := range src.DateColumns {
		forceDate[c] = true
	}
	if src.FiscalDate != "" {
		forceDate[src.FiscalDate] = true
	}

	var (
		cols []*Column
		err  error
	)
	switch f := src.ResolvedFormat(); f {
	case FormatCSV:
		cols, err = l.loadCSV(src.Path, forceDate)
	case FormatSQLite:
		table := src.Table
		if table == "" {
			table = name
		}
		cols, err = l.loadSQLite(ctx, src.Path, table, forceDate)
	case FormatParquet:
		cols, err = l.loadParquet(ctx, src.Path, forceDate)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedFormat, f)
	}
	if err != nil {
		return nil, err
	}

	if src.FiscalDate != "" {
		cols, err = deriveFiscal(cols, src.FiscalDate, l.calendar)
		if err != nil {
			return nil, err
		}
	}

	rows := 0
	if len(cols) > 0 {
		rows = cols[0].Len()
	}
	l.logger.Info("dataset source read",
		zap.String("dataset", name),
		zap.String("path", src.Path),
		zap.Int("columns", len(cols)),
		zap.Int("rows", rows))
	return cols, nil
}

func (l *FileLoader) loadCSV(path string, forceDate map[string]bool) ([]*Column, error) {
	file, err := l.store.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	cells := make([][]any, len(header))
	lineNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNum++
		if err != nil {
			l.logger.Warn("skipping unreadable line",
				zap.String("path", path), zap.Int("line", lineNum), zap.Error(err))
			continue
		}
		for j := range header {
			var cell any
			if j < len(record) {
				if v := strings.TrimSpace(record[j]); v != "" {
					cell = v
				}
			}
			cells[j] = append(cells[j], cell)
		}
	}

	cols := make([]*Column, len(header))
	for j, name := range header {
		cols[j] = inferColumn(name, cells[j], forceDate[name])
	}
	return cols, nil
}

func (l *FileLoader) loadSQLite(ctx context.Context, path, table string, forceDate map[string]bool) ([]*Column, error) {
	plain, cleanup, err := l.store.Materialize(path)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	db, err := sql.Open("sqlite", plain)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(table))
	if err != nil {
		return nil, fmt.Errorf("query table %s: %w", table, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	cells := make([][]any, len(names))
	vals := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for j, v := range vals {
			cells[j] = append(cells[j], normalizeCell(v))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cols := make([]*Column, len(names))
	for j, name := range names {
		cols[j] = inferColumn(name, cells[j], forceDate[name])
	}
	return cols, nil
}

// normalizeCell maps a scanned or decoded value to the cell types
// inferColumn understands.
func normalizeCell(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		if len(x) == 0 {
			return nil
		}
		return string(x)
	case string:
		if strings.TrimSpace(x) == "" {
			return nil
		}
		return x
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	default:
		return x
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
