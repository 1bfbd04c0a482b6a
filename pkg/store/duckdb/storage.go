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
		filename VARCHAR NOT NULL,
		source_path VARCHAR NOT NULL,
		html_path VARCHAR NOT NULL,
		json_path VARCHAR NOT NULL,
		status VARCHAR NOT NULL,
		error VARCHAR NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		started_at TIMESTAMP NULL,
		finished_at TIMESTAMP NULL
	);
`

var bootQueries = []string{
	ReportJobsSchema,
}

type Settings struct {
	DbPath  string
	Threads int
}

func NewDB(settings Settings) (*sql.DB, error) {
	threads := settings.Threads
	if threads <= 0 {
		threads = 4
	}

	c, err := duckdb.NewConnector(fmt.Sprintf("%s?threads=%d", settings.DbPath, threads), func(exec driver.ExecerContext) error {
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
