package clickhouse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(ClientConfig{
		Host: "ch", Port: 9000, Database: "loadcast", User: "u", Password: "p",
		DialTimeout: 5 * time.Second, MaxExecTime: 30 * time.Second,
		AsyncInsert: true, WaitForAsync: true,
	})
	assert.Equal(t, "clickhouse://u:p@ch:9000/loadcast?dial_timeout=5s&max_execution_time=30&async_insert=1&wait_for_async_insert=1", dsn)

	assert.Equal(t, "clickhouse+http://:@ch:8123/db", buildDSN(ClientConfig{Host: "ch", Port: 8123, Database: "db", UseHTTP: true}))
}

func TestInsertRowsChunks(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	c := NewClientFromDB(db, 2)
	rows := [][]any{{"a", 1.0}, {"b", 2.0}, {"c", 3.0}}

	mock.ExpectExec(`INSERT INTO t \(id, v\) VALUES \(\?,\?\),\(\?,\?\)`).
		WithArgs("a", 1.0, "b", 2.0).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO t \(id, v\) VALUES \(\?,\?\)$`).
		WithArgs("c", 3.0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, c.InsertRows(context.Background(), "t", []string{"id", "v"}, rows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRowsRejectsRaggedRow(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	err = NewClientFromDB(db, 0).InsertRows(context.Background(), "t", []string{"id", "v"}, [][]any{{"a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 0 has 1 values")
}

func TestInitSchemaStopsAtFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE DATABASE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("boom"))

	err = NewClientFromDB(db, 0).InitSchema(context.Background(), []string{"CREATE DATABASE x", "CREATE TABLE y", "CREATE TABLE z"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statement 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}
