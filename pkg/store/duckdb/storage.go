package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/marcboeker/go-duckdb/v2"
)

const ReportJobsSchema = `
	CREATE TABLE IF NOT EXISTS report_jobs (
		id VARCHAR NOT NULL PRIMARY KEY,
		owner_ref VARCHAR NOT NULL,
		dedupe_key VARCHAR NOT NULL,
		state VARCHAR NOT NULL,
		source_key VARCHAR NOT NULL,
		source_filename VARCHAR NOT NULL,
		source_size BIGINT NOT NULL,
		formats VARCHAR NOT NULL,
		template_id VARCHAR NOT NULL,
		statistics JSON,
		artifacts JSON,
		error_category VARCHAR,
		row_errors INTEGER NOT NULL DEFAULT 0,
		coercions INTEGER NOT NULL DEFAULT 0,
		unknown_categories INTEGER NOT NULL DEFAULT 0,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		started_at TIMESTAMP,
		completed_at TIMESTAMP,
		UNIQUE (owner_ref, dedupe_key)
	);
`

var bootQueries = []string{
	ReportJobsSchema,
}

type Settings struct {
	DbPath string
}

func NewDB(settings Settings) (*sql.DB, error) {
	c, err := duckdb.NewConnector(fmt.Sprintf("%s?threads=4", settings.DbPath), func(exec driver.ExecerContext) error {
		for _, query := range bootQueries {
			_, err := exec.ExecContext(context.Background(), query, nil)
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(c)
	return db, nil
}

type txKey struct{}

func WithTransaction(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func GetTransaction(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}
