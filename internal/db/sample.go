package db

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

// sampleFS holds the sample warehouse migrations and its model document.
//
//go:embed sample/*.sql sample/model.yaml
var sampleFS embed.FS

// SampleModel returns the model document describing the sample warehouse.
func SampleModel() []byte {
	data, err := sampleFS.ReadFile("sample/model.yaml")
	if err != nil {
		panic(err) // embedded at build time
	}
	return data
}

// SeedSample creates and fills the sample sales warehouse in a SQLite
// database opened for writing.
func SeedSample(db *sql.DB) error {
	goose.SetBaseFS(sampleFS)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}

	if err := goose.Up(db, "sample"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}
