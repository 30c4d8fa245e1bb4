package dsql_test

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"math/rand"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/luno/jettison/jtest"
	_ "modernc.org/sqlite"
)

var dbTestURI = flag.String("db_test_uri", "", "Test mysql database uri, sqlite is used if empty")

const checkpointsTable = "checkpoints"

type CheckpointTableSchema struct {
	Name          string
	ScopeField    string
	PositionField string
	TimeField     string
}

func (s CheckpointTableSchema) CreateTable(t *testing.T, dbc *sql.DB) {
	if s.Name == "" {
		return
	}
	scope, pos, ts := s.ScopeField, s.PositionField, s.TimeField
	if scope == "" {
		scope = "scope"
	}
	if pos == "" {
		pos = "position"
	}
	if ts == "" {
		ts = "updated_at"
	}

	q := fmt.Sprintf("create table %s (%s varchar(255) not null primary key, "+
		"%s text, %s datetime not null)", s.Name, scope, pos, ts)
	_, err := dbc.Exec(q)
	jtest.RequireNil(t, err)
}

// ConnectTestDB returns a connection to a fresh database with the table.
// It uses an in-memory sqlite database unless -db_test_uri is provided.
func ConnectTestDB(t *testing.T, table CheckpointTableSchema) *sql.DB {
	if *dbTestURI == "" {
		dbc, err := sql.Open("sqlite", ":memory:")
		jtest.RequireNil(t, err)

		// Every connection gets its own in-memory database.
		dbc.SetMaxOpenConns(1)

		t.Cleanup(func() {
			jtest.RequireNil(t, dbc.Close())
		})

		table.CreateTable(t, dbc)
		return dbc
	}

	admin, err := sql.Open("mysql", *dbTestURI)
	jtest.RequireNil(t, err)

	dbName := fmt.Sprintf("test_%d", rand.Int())
	_, err = admin.ExecContext(context.Background(), "create database "+dbName)
	jtest.RequireNil(t, err)

	t.Log("created database: " + dbName)

	t.Cleanup(func() {
		_, err := admin.ExecContext(context.Background(), "drop database "+dbName)
		jtest.RequireNil(t, err)
		jtest.RequireNil(t, admin.Close())
	})

	dbc, err := sql.Open("mysql", *dbTestURI+dbName+"?parseTime=true")
	jtest.RequireNil(t, err)

	t.Cleanup(func() {
		jtest.RequireNil(t, dbc.Close())
	})

	table.CreateTable(t, dbc)
	return dbc
}
