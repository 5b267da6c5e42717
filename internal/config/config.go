package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"moneymoved/internal/dataset"
	"moneymoved/internal/fiscal"
	"moneymoved/internal/services/analytics"
)

// Config holds application configuration
type Config struct {
	// Server settings
	ListenAddr string `json:"listen_addr"`
	Debug      bool   `json:"debug"`

	// Directories and files
	DataDirectory   string `json:"data_directory"`
	CatalogFile     string `json:"catalog_file"`
	AssetsFile      string `json:"assets_file"`
	AssetsDirectory string `json:"assets_directory"`

	// Fiscal calendar
	FiscalStartMonth int `json:"fiscal_start_month"`
	FiscalPeriods    int `json:"fiscal_periods"`

	// Fundraising targets
	Target      float64 `json:"target"`
	CFTarget    float64 `json:"cf_target"`
	ARRTarget   float64 `json:"arr_target"`
	DefaultTopN int     `json:"default_top_n"`

	// DataPassword unlocks a sealed data directory without prompting.
	DataPassword string `json:"-"`
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	opts := analytics.DefaultOptions()

	return &Config{
		ListenAddr:       ":8080",
		DataDirectory:    filepath.Join(wd, "data"),
		CatalogFile:      filepath.Join(wd, "data", "catalog.yaml"),
		AssetsFile:       filepath.Join(wd, "data", "assets.yaml"),
		FiscalStartMonth: int(opts.Calendar.StartMonth),
		FiscalPeriods:    opts.Calendar.Periods,
		Target:           opts.Amounts[0].Target,
		CFTarget:         opts.Amounts[1].Target,
		ARRTarget:        opts.FlowAmount.Target,
		DefaultTopN:      opts.DefaultTopN,
	}
}

// Load applies MM_* environment overrides to the defaults. Call
// godotenv.Load first to pick up a .env file.
func Load() *Config {
	cfg := DefaultConfig()

	cfg.ListenAddr = getEnv("MM_LISTEN_ADDR", cfg.ListenAddr)
	if debug := os.Getenv("MM_DEBUG"); debug == "true" || debug == "1" {
		cfg.Debug = true
	}
	if dataDir := os.Getenv("MM_DATA_DIR"); dataDir != "" {
		cfg.DataDirectory = dataDir
		cfg.CatalogFile = filepath.Join(dataDir, "catalog.yaml")
		cfg.AssetsFile = filepath.Join(dataDir, "assets.yaml")
	}
	cfg.CatalogFile = getEnv("MM_CATALOG_FILE", cfg.CatalogFile)
	cfg.AssetsFile = getEnv("MM_ASSETS_FILE", cfg.AssetsFile)
	cfg.AssetsDirectory = getEnv("MM_ASSETS_DIR", cfg.AssetsDirectory)

	cfg.FiscalStartMonth = getEnvInt("MM_FISCAL_START_MONTH", cfg.FiscalStartMonth)
	cfg.FiscalPeriods = getEnvInt("MM_FISCAL_PERIODS", cfg.FiscalPeriods)
	cfg.Target = getEnvFloat("MM_TARGET", cfg.Target)
	cfg.CFTarget = getEnvFloat("MM_CF_TARGET", cfg.CFTarget)
	cfg.ARRTarget = getEnvFloat("MM_ARR_TARGET", cfg.ARRTarget)
	cfg.DefaultTopN = getEnvInt("MM_DEFAULT_TOP_N", cfg.DefaultTopN)
	cfg.DataPassword = os.Getenv("MM_DATA_PASSWORD")

	return cfg
}

// Calendar returns the configured fiscal calendar.
func (c *Config) Calendar() fiscal.Calendar {
	return fiscal.New(time.Month(c.FiscalStartMonth), c.FiscalPeriods)
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if c.ListenAddr == "" {
		errors = append(errors, "listen address cannot be empty")
	}

	if c.FiscalStartMonth < 1 || c.FiscalStartMonth > 12 {
		errors = append(errors, fmt.Sprintf("invalid fiscal start month %d: must be between 1 and 12", c.FiscalStartMonth))
	}
	if c.FiscalPeriods < 1 || c.FiscalPeriods > 12 {
		errors = append(errors, fmt.Sprintf("invalid fiscal periods %d: must be between 1 and 12", c.FiscalPeriods))
	}

	for _, t := range []struct {
		name  string
		value float64
	}{
		{"target", c.Target},
		{"counterfactual target", c.CFTarget},
		{"ARR target", c.ARRTarget},
	} {
		if t.value < 0 {
			errors = append(errors, fmt.Sprintf("invalid %s %g: must not be negative", t.name, t.value))
		}
	}

	if c.DefaultTopN < 1 {
		errors = append(errors, fmt.Sprintf("invalid default top N %d: must be at least 1", c.DefaultTopN))
	}

	if info, err := os.Stat(c.DataDirectory); err != nil {
		errors = append(errors, fmt.Sprintf("data directory %s: %v", c.DataDirectory, err))
	} else if !info.IsDir() {
		errors = append(errors, fmt.Sprintf("data directory %s is not a directory", c.DataDirectory))
	}

	if c.CatalogFile == "" {
		errors = append(errors, "catalog file cannot be empty")
	} else if _, err := os.Stat(c.CatalogFile); os.IsNotExist(err) {
		errors = append(errors, fmt.Sprintf("catalog file does not exist: %s", c.CatalogFile))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Options maps the configuration and catalogue onto the analytics column
// layout.
func (c *Config) Options(cat *Catalog) analytics.Options {
	opts := analytics.DefaultOptions()
	opts.Calendar = c.Calendar()
	opts.Amounts[0].Target = c.Target
	opts.Amounts[1].Target = c.CFTarget
	opts.FlowAmount.Target = c.ARRTarget
	opts.DefaultTopN = c.DefaultTopN
	if cat == nil {
		return opts
	}

	col := cat.Columns
	if col.FiscalDate != "" {
		opts.FiscalDate = col.FiscalDate
	}
	if col.Entity != "" {
		opts.EntityColumn = col.Entity
	}
	if col.Frequency != "" {
		opts.FrequencyColumn = col.Frequency
	}
	if col.Portfolio != "" {
		opts.PortfolioColumn = col.Portfolio
	}
	if col.Amount != "" {
		opts.Amounts[0].Column = col.Amount
	}
	if col.CFAmount != "" {
		opts.Amounts[1].Column = col.CFAmount
	}
	if col.FlowAmount != "" {
		opts.FlowAmount.Column = col.FlowAmount
	}
	if col.FlowYear != "" {
		opts.FlowYearColumn = col.FlowYear
	}
	if cat.ExcludedPortfolios != nil {
		opts.ExcludedPortfolios = cat.ExcludedPortfolios
	}
	return opts
}

// Columns overrides the default column names of the views.
type Columns struct {
	FiscalDate string `yaml:"fiscal_date"`
	Entity     string `yaml:"entity"`
	Frequency  string `yaml:"frequency"`
	Portfolio  string `yaml:"portfolio"`
	Amount     string `yaml:"amount"`
	CFAmount   string `yaml:"cf_amount"`
	FlowAmount string `yaml:"flow_amount"`
	FlowYear   string `yaml:"flow_year"`
}

// Catalog lists the datasets to register at startup and which of them
// back the money moved and flow views.
type Catalog struct {
	Datasets   map[string]dataset.Source `yaml:"datasets"`
	MoneyMoved string                    `yaml:"money_moved"`
	Flow       string                    `yaml:"flow"`
	// ExcludedPortfolios replaces the default exclusions when set; an
	// empty list disables them.
	ExcludedPortfolios []string `yaml:"excluded_portfolios"`
	Columns            Columns  `yaml:"columns"`
}

// Catalog defaults.
const (
	DefaultMoneyMovedDataset = "merged"
	DefaultFlowDataset       = "pledge_active_arr"
)

// LoadCatalog reads a YAML dataset catalogue.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a catalogue and fills in the view defaults.
func ParseCatalog(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(cat.Datasets) == 0 {
		return nil, fmt.Errorf("catalog lists no datasets")
	}
	for name, src := range cat.Datasets {
		if src.Path == "" {
			return nil, fmt.Errorf("catalog dataset %q has no path", name)
		}
	}
	if cat.MoneyMoved == "" {
		cat.MoneyMoved = DefaultMoneyMovedDataset
	}
	if cat.Flow == "" {
		cat.Flow = DefaultFlowDataset
	}
	return &cat, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.ReplaceAll(value, "_", ""), 64); err == nil {
			return f
		}
	}
	return defaultValue
}
