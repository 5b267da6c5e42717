package dataset

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow/go/v7/arrow"
	"github.com/apache/arrow/go/v7/arrow/array"
	"github.com/apache/arrow/go/v7/arrow/memory"
	"github.com/apache/arrow/go/v7/parquet"
	"github.com/apache/arrow/go/v7/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneymoved/internal/fiscal"
	"moneymoved/internal/services/storage"
)

const paymentsCSV = `payment_date,payment_platform,payment_amount_usd,pledge_frequency
2024-07-01,Stripe,"$1,200.50",Monthly
2024-08-15,PayPal,(25.00),
2025-01-02,,300,One-Time
`

func newTestLoader(t *testing.T, dir string) *FileLoader {
	t.Helper()
	store, err := storage.New(dir)
	require.NoError(t, err)
	return NewFileLoader(store, fiscal.Default(), nil)
}

func TestLoadCSVInfersKinds(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "payments.csv"), []byte(paymentsCSV), 0644))

	cols, err := newTestLoader(t, dir).Load(context.Background(), "payments", Source{Path: "payments.csv"})
	require.NoError(t, err)
	ds, err := New("payments", cols...)
	require.NoError(t, err)

	schema := ds.Schema()
	tests := []struct {
		column string
		want   Kind
	}{
		{"payment_date", KindDate},
		{"payment_platform", KindString},
		{"payment_amount_usd", KindNumber},
		{"pledge_frequency", KindString},
	}
	for _, tt := range tests {
		f, ok := schema.Field(tt.column)
		require.True(t, ok, tt.column)
		assert.Equal(t, tt.want, f.Kind, tt.column)
	}

	amount, _ := ds.Column("payment_amount_usd")
	v, ok := amount.Num(0)
	assert.True(t, ok)
	assert.InDelta(t, 1200.50, v, 1e-9)
	v, _ = amount.Num(1)
	assert.InDelta(t, -25.0, v, 1e-9)

	platform, _ := ds.Column("payment_platform")
	assert.True(t, platform.IsNull(2), "empty cell should be null")
	freq, _ := ds.Column("pledge_frequency")
	assert.True(t, freq.IsNull(1))
}

func TestLoadCSVDerivesFiscalColumns(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "payments.csv"), []byte(paymentsCSV), 0644))

	cols, err := newTestLoader(t, dir).Load(context.Background(), "payments",
		Source{Path: "payments.csv", FiscalDate: "payment_date"})
	require.NoError(t, err)
	ds, err := New("payments", cols...)
	require.NoError(t, err)

	names := FiscalColumns("payment_date")
	fy, ok := ds.Column(names.Year)
	require.True(t, ok)
	fm, _ := ds.Column(names.Period)
	label, _ := ds.Column(names.MonthYear)
	dow, _ := ds.Column(names.DayOfWeek)

	y, _ := fy.Num(2)
	assert.Equal(t, 2025.0, y)
	m, _ := fm.Num(2)
	assert.Equal(t, 7.0, m)
	l, _ := label.Str(0)
	assert.Equal(t, "Jul '24", l)
	d, _ := dow.Str(0)
	assert.Equal(t, "Monday", d)
}

func TestLoadSealedCSV(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "payments.csv"), []byte(paymentsCSV), 0644))
	store, err := storage.New(dir)
	require.NoError(t, err)
	require.NoError(t, store.Seal("correct horse battery"))
	store.Lock()

	loader := NewFileLoader(store, fiscal.Default(), nil)
	_, err = loader.Load(context.Background(), "payments", Source{Path: "payments.csv"})
	require.ErrorIs(t, err, storage.ErrLocked)

	require.NoError(t, store.Unlock("correct horse battery"))
	cols, err := loader.Load(context.Background(), "payments", Source{Path: "payments.csv"})
	require.NoError(t, err)
	assert.Equal(t, 3, cols[0].Len())
}

func TestLoadSQLite(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "pledges.db")
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE pledges (pledge_donor_chapter TEXT, pledge_amount REAL, pledge_starts_at TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO pledges VALUES ('Harvard', 10.5, '2024-09-01'), (NULL, 20, '2024-10-01')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	cols, err := newTestLoader(t, dir).Load(context.Background(), "pledges", Source{Path: "pledges.db"})
	require.NoError(t, err)
	ds, err := New("pledges", cols...)
	require.NoError(t, err)

	assert.Equal(t, 2, ds.Len())
	chapter, _ := ds.Column("pledge_donor_chapter")
	assert.Equal(t, KindString, chapter.Kind())
	assert.True(t, chapter.IsNull(1))
	amount, _ := ds.Column("pledge_amount")
	assert.Equal(t, KindNumber, amount.Kind())
	starts, _ := ds.Column("pledge_starts_at")
	assert.Equal(t, KindDate, starts.Kind())
	d, _ := starts.Date(0)
	assert.True(t, d.Equal(time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)))
}

func TestLoadCSVStripsByteOrderMark(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "payments.csv"), []byte("\ufeff"+paymentsCSV), 0644))

	cols, err := newTestLoader(t, dir).Load(context.Background(), "payments", Source{Path: "payments.csv"})
	require.NoError(t, err)
	assert.Equal(t, "payment_date", cols[0].Name())
	assert.Equal(t, KindDate, cols[0].Kind())
}

func TestLoadUnsupportedFormat(t *testing.T) {
	_, err := newTestLoader(t, t.TempDir()).Load(context.Background(), "arr", Source{Path: "pledge_active_arr.feather"})
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func arrowDate(y int, m time.Month, d int) arrow.Date32 {
	return arrow.Date32(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

// writePayments writes a three-row payments table as Parquet.
func writePayments(t *testing.T, path string) {
	t.Helper()
	mem := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "payment_date", Type: arrow.FixedWidthTypes.Date32, Nullable: true},
		{Name: "payment_platform", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "payment_amount_usd", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "payment_count", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	b.Field(0).(*array.Date32Builder).AppendValues(
		[]arrow.Date32{arrowDate(2024, time.July, 1), arrowDate(2025, time.January, 2), 0},
		[]bool{true, true, false})
	b.Field(1).(*array.StringBuilder).AppendValues([]string{"Stripe", "", "PayPal"}, []bool{true, false, true})
	b.Field(2).(*array.Float64Builder).AppendValues([]float64{1200.5, -25, 300}, nil)
	b.Field(3).(*array.Int64Builder).AppendValues([]int64{1, 2, 3}, nil)

	rec := b.NewRecord()
	defer rec.Release()
	tbl := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer tbl.Release()

	var buf bytes.Buffer
	require.NoError(t, pqarrow.WriteTable(tbl, &buf, 1024,
		parquet.NewWriterProperties(parquet.WithAllocator(mem)), pqarrow.DefaultWriterProps()))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func TestLoadParquet(t *testing.T) {
	dir := t.TempDir()
	writePayments(t, filepath.Join(dir, "payments.parquet"))

	cols, err := newTestLoader(t, dir).Load(context.Background(), "payments",
		Source{Path: "payments.parquet", FiscalDate: "payment_date"})
	require.NoError(t, err)
	ds, err := New("payments", cols...)
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())

	tests := []struct {
		column string
		want   Kind
	}{
		{"payment_date", KindDate},
		{"payment_platform", KindString},
		{"payment_amount_usd", KindNumber},
		{"payment_count", KindNumber},
	}
	for _, tt := range tests {
		f, ok := ds.Schema().Field(tt.column)
		require.True(t, ok, tt.column)
		assert.Equal(t, tt.want, f.Kind, tt.column)
	}

	date, _ := ds.Column("payment_date")
	d, ok := date.Date(1)
	require.True(t, ok)
	assert.True(t, d.Equal(time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC)))
	assert.True(t, date.IsNull(2))

	platform, _ := ds.Column("payment_platform")
	assert.True(t, platform.IsNull(1))
	amount, _ := ds.Column("payment_amount_usd")
	v, _ := amount.Num(1)
	assert.Equal(t, -25.0, v)

	fy, ok := ds.Column(FiscalColumns("payment_date").Year)
	require.True(t, ok)
	y, _ := fy.Num(0)
	assert.Equal(t, 2025.0, y)
}

func TestLoadSealedParquet(t *testing.T) {
	dir := t.TempDir()
	writePayments(t, filepath.Join(dir, "payments.parquet"))
	store, err := storage.New(dir)
	require.NoError(t, err)
	require.NoError(t, store.Seal("correct horse battery"))

	raw, err := os.ReadFile(filepath.Join(dir, "payments.parquet"))
	require.NoError(t, err)
	assert.False(t, bytes.HasPrefix(raw, []byte("PAR1")), "parquet file should be sealed")

	cols, err := NewFileLoader(store, fiscal.Default(), nil).Load(context.Background(), "payments", Source{Path: "payments.parquet"})
	require.NoError(t, err)
	assert.Equal(t, 3, cols[0].Len())
}

func TestLoadFiscalDateMustBeDate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.csv"), []byte("a,b\n1,2\n"), 0644))
	_, err := newTestLoader(t, dir).Load(context.Background(), "x", Source{Path: "x.csv", FiscalDate: "missing"})
	var se *SchemaError
	assert.ErrorAs(t, err, &se)
}

func TestSourceResolvedFormat(t *testing.T) {
	tests := []struct {
		src  Source
		want Format
	}{
		{Source{Path: "a.csv"}, FormatCSV},
		{Source{Path: "a.CSV"}, FormatCSV},
		{Source{Path: "a.db"}, FormatSQLite},
		{Source{Path: "a.parquet"}, FormatParquet},
		{Source{Path: "a.txt", Format: "CSV"}, FormatCSV},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.src.ResolvedFormat(), tt.src.Path)
	}
}

func TestFromRecords(t *testing.T) {
	ds, err := FromRecords("t", []Field{
		{Name: "name", Kind: KindString},
		{Name: "amount", Kind: KindNumber},
	}, [][]any{
		{"a", 1},
		{nil, 2.5},
	})
	require.NoError(t, err)
	name, _ := ds.Column("name")
	assert.Nil(t, name.Value(1))
	amount, _ := ds.Column("amount")
	assert.Equal(t, 1.0, amount.Value(0))

	_, err = FromRecords("t", []Field{{Name: "amount", Kind: KindNumber}}, [][]any{{"nope"}})
	var se *SchemaError
	assert.ErrorAs(t, err, &se)
}
