package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	_ "github.com/lib/pq"
)

// SourceConfig holds connection details for a data source. The core is
// agnostic to how raw JSON is retrieved; these implementations cover the
// common transports.
type SourceConfig struct {
	Type string `json:"type" toml:"type"` // "postgres", "http", "file"

	// Postgres
	Host     string `json:"host,omitempty" toml:"host,omitempty"`
	Port     int    `json:"port,omitempty" toml:"port,omitempty"`
	User     string `json:"user,omitempty" toml:"user,omitempty"`
	Password string `json:"password,omitempty" toml:"password,omitempty"`
	DBName   string `json:"dbname,omitempty" toml:"dbname,omitempty"`
	SSLMode  string `json:"sslmode,omitempty" toml:"sslmode,omitempty"` // "disable", "require"
	Query    string `json:"query,omitempty" toml:"query,omitempty"`     // opaque upstream text, authored separately

	// HTTP
	URL     string            `json:"url,omitempty" toml:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty" toml:"headers,omitempty"`

	// File (CLI use)
	Path string `json:"path,omitempty" toml:"path,omitempty"`
}

// Source supplies the deserialized raw JSON consumed by the pipeline.
type Source interface {
	Fetch(ctx context.Context) (any, error)
	Close() error
}

// NewSource builds a Source from config.
func NewSource(cfg SourceConfig) (Source, error) {
	switch cfg.Type {
	case "postgres":
		s := &PostgresSource{query: cfg.Query}
		if err := s.Connect(cfg); err != nil {
			return nil, err
		}
		return s, nil
	case "http":
		return NewHTTPSource(cfg.URL, cfg.Headers), nil
	case "file":
		return &FileSource{Path: cfg.Path}, nil
	default:
		return nil, fmt.Errorf("unsupported source type %q", cfg.Type)
	}
}

// ============================================================================
// Postgres
// ============================================================================

// PostgresSource runs a user-authored query and returns the result set as
// an array of JSON-style row objects.
type PostgresSource struct {
	db    *sql.DB
	query string
}

func (p *PostgresSource) Connect(cfg SourceConfig) error {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		return err
	}
	p.db = db
	return nil
}

func (p *PostgresSource) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// SetQuery replaces the opaque upstream query text.
func (p *PostgresSource) SetQuery(query string) { p.query = query }

func (p *PostgresSource) Fetch(ctx context.Context) (any, error) {
	if p.query == "" {
		return nil, fmt.Errorf("postgres source: no query configured")
	}

	rows, err := p.db.QueryContext(ctx, p.query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []any
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			val := values[i]
			// Drivers commonly hand strings back as byte slices.
			if b, ok := val.([]byte); ok {
				rowMap[col] = string(b)
			} else {
				rowMap[col] = val
			}
		}
		result = append(result, rowMap)
	}
	return result, rows.Err()
}

// ============================================================================
// HTTP
// ============================================================================

// HTTPSource fetches a JSON document from an API endpoint. Auth plumbing is
// the caller's concern; arbitrary headers pass through.
type HTTPSource struct {
	url     string
	headers map[string]string
	client  *http.Client
}

func NewHTTPSource(url string, headers map[string]string) *HTTPSource {
	return &HTTPSource{
		url:     url,
		headers: headers,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (h *HTTPSource) Fetch(ctx context.Context) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source API returned status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("source response is not valid JSON: %w", err)
	}
	return data, nil
}

func (h *HTTPSource) Close() error { return nil }

// ============================================================================
// File
// ============================================================================

// FileSource reads a JSON document from disk; used by the CLI.
type FileSource struct {
	Path string
}

func (f *FileSource) Fetch(ctx context.Context) (any, error) {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%s: not valid JSON: %w", f.Path, err)
	}
	return data, nil
}

func (f *FileSource) Close() error { return nil }
