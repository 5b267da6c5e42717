package dataset

import (
	"path/filepath"
	"slices"
	"strings"
)

// Format names a dataset source encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatSQLite  Format = "sqlite"
	FormatParquet Format = "parquet"
)

// Source describes where a dataset is read from.
type Source struct {
	// Path is absolute or relative to the data directory.
	Path string `yaml:"path" json:"path"`
	// Format overrides detection from the file extension.
	Format Format `yaml:"format,omitempty" json:"format,omitempty"`
	// Table is the SQLite table to read. Defaults to the dataset name.
	Table string `yaml:"table,omitempty" json:"table,omitempty"`
	// DateColumns are parsed as dates even if inference would not.
	DateColumns []string `yaml:"date_columns,omitempty" json:"date_columns,omitempty"`
	// FiscalDate names a date column from which fiscal period columns are
	// derived when the source does not already carry them.
	FiscalDate string `yaml:"fiscal_date,omitempty" json:"fiscal_date,omitempty"`
}

// ResolvedFormat returns Format, or the format implied by the extension.
func (s Source) ResolvedFormat() Format {
	if s.Format != "" {
		return Format(strings.ToLower(string(s.Format)))
	}
	switch strings.ToLower(filepath.Ext(s.Path)) {
	case ".csv":
		return FormatCSV
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite
	case ".parquet":
		return FormatParquet
	default:
		return Format(strings.TrimPrefix(strings.ToLower(filepath.Ext(s.Path)), "."))
	}
}

// Equal reports whether two descriptors name the same source.
func (s Source) Equal(o Source) bool {
	return s.Path == o.Path &&
		s.ResolvedFormat() == o.ResolvedFormat() &&
		s.Table == o.Table &&
		s.FiscalDate == o.FiscalDate &&
		slices.Equal(s.DateColumns, o.DateColumns)
}
