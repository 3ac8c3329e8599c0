// Package entdriver implements storage.Driver on top of ent's dialect-aware
// SQL builder. It is database-agnostic and is embedded by the sqlite and
// postgres drivers.
package entdriver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/ZBcheng/pure-ollama/pkg/storage"
)

// Table holds recorded exchanges.
const Table = "exchanges"

var columns = []string{
	"id",
	"endpoint",
	"model",
	"status",
	"streamed",
	"request",
	"response",
	"error",
	"prompt_tokens",
	"completion_tokens",
	"duration_ns",
	"created_at",
}

// EntDriver provides storage operations using an ent SQL driver.
type EntDriver struct {
	Driver  *entsql.Driver
	Dialect string
}

// Open wraps an ent SQL driver and creates the exchanges table if needed.
func Open(ctx context.Context, drv *entsql.Driver) (*EntDriver, error) {
	switch drv.Dialect() {
	case dialect.SQLite, dialect.Postgres:
	default:
		return nil, errors.New("unsupported dialect: " + drv.Dialect())
	}

	ed := &EntDriver{Driver: drv, Dialect: drv.Dialect()}
	if err := ed.migrate(ctx); err != nil {
		return nil, err
	}
	return ed, nil
}

// migrate creates the schema. Changes are append-only: new columns must be
// added with their own statements.
func (ed *EntDriver) migrate(ctx context.Context) error {
	b := entsql.Dialect(ed.Dialect)

	query, args := b.CreateTable(Table).
		IfNotExists().
		Columns(
			entsql.Column("id").Type("varchar(36)").Attr("NOT NULL"),
			entsql.Column("endpoint").Type("varchar(16)").Attr("NOT NULL"),
			entsql.Column("model").Type("text").Attr("NOT NULL DEFAULT ''"),
			entsql.Column("status").Type("integer").Attr("NOT NULL DEFAULT 0"),
			entsql.Column("streamed").Type("boolean").Attr("NOT NULL DEFAULT false"),
			entsql.Column("request").Type("text").Attr("NOT NULL DEFAULT ''"),
			entsql.Column("response").Type("text").Attr("NOT NULL DEFAULT ''"),
			entsql.Column("error").Type("text").Attr("NOT NULL DEFAULT ''"),
			entsql.Column("prompt_tokens").Type("bigint").Attr("NOT NULL DEFAULT 0"),
			entsql.Column("completion_tokens").Type("bigint").Attr("NOT NULL DEFAULT 0"),
			entsql.Column("duration_ns").Type("bigint").Attr("NOT NULL DEFAULT 0"),
			entsql.Column("created_at").Type("bigint").Attr("NOT NULL"),
		).
		PrimaryKey("id").
		Query()
	if err := ed.Driver.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	index := "CREATE INDEX IF NOT EXISTS exchanges_created_at ON " + Table + " (created_at)"
	if err := ed.Driver.Exec(ctx, index, []any{}, nil); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// Put inserts an exchange.
func (ed *EntDriver) Put(ctx context.Context, ex *storage.Exchange) error {
	if err := ex.Validate(); err != nil {
		return err
	}

	query, args := entsql.Dialect(ed.Dialect).
		Insert(Table).
		Columns(columns...).
		Values(
			ex.ID,
			string(ex.Endpoint),
			ex.Model,
			ex.Status,
			ex.Streamed,
			string(ex.Request),
			string(ex.Response),
			ex.Error,
			int64(ex.PromptTokens),
			int64(ex.CompletionTokens),
			int64(ex.DurationNs),
			ex.CreatedAt.UnixNano(),
		).
		Query()

	if err := ed.Driver.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("could not insert exchange: %w", err)
	}

	return nil
}

// Get retrieves an exchange by its ID.
func (ed *EntDriver) Get(ctx context.Context, id string) (*storage.Exchange, error) {
	query, args := entsql.Dialect(ed.Dialect).
		Select(columns...).
		From(entsql.Dialect(ed.Dialect).Table(Table)).
		Where(entsql.EQ("id", id)).
		Query()

	exchanges, err := ed.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(exchanges) == 0 {
		return nil, storage.NotFoundError{ID: id}
	}

	return exchanges[0], nil
}

// List returns matching exchanges newest first.
func (ed *EntDriver) List(ctx context.Context, opts storage.ListOptions) ([]*storage.Exchange, error) {
	selector := entsql.Dialect(ed.Dialect).
		Select(columns...).
		From(entsql.Dialect(ed.Dialect).Table(Table)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id"))

	var preds []*entsql.Predicate
	if opts.Model != "" {
		preds = append(preds, entsql.EQ("model", opts.Model))
	}
	if opts.Endpoint != "" {
		preds = append(preds, entsql.EQ("endpoint", string(opts.Endpoint)))
	}
	if len(preds) > 0 {
		selector.Where(entsql.And(preds...))
	}
	if opts.Limit > 0 {
		selector.Limit(opts.Limit)
	}

	query, args := selector.Query()
	return ed.query(ctx, query, args)
}

// Close closes the underlying database.
func (ed *EntDriver) Close() error {
	return ed.Driver.Close()
}

func (ed *EntDriver) query(ctx context.Context, query string, args []any) ([]*storage.Exchange, error) {
	var rows entsql.Rows
	if err := ed.Driver.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("could not query exchanges: %w", err)
	}
	defer rows.Close()

	var result []*storage.Exchange
	for rows.Next() {
		ex, err := scanExchange(&rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not read exchanges: %w", err)
	}

	return result, nil
}

func scanExchange(rows *entsql.Rows) (*storage.Exchange, error) {
	var (
		ex                          storage.Exchange
		endpoint, request, response string
		prompt, completion, dur     int64
		created                     int64
	)

	err := rows.Scan(
		&ex.ID,
		&endpoint,
		&ex.Model,
		&ex.Status,
		&ex.Streamed,
		&request,
		&response,
		&ex.Error,
		&prompt,
		&completion,
		&dur,
		&created,
	)
	if err != nil {
		return nil, fmt.Errorf("could not scan exchange: %w", err)
	}

	ex.Endpoint = storage.Endpoint(endpoint)
	if request != "" {
		ex.Request = []byte(request)
	}
	if response != "" {
		ex.Response = []byte(response)
	}
	ex.PromptTokens = uint64(prompt)
	ex.CompletionTokens = uint64(completion)
	ex.DurationNs = uint64(dur)
	ex.CreatedAt = time.Unix(0, created).UTC()

	return &ex, nil
}
