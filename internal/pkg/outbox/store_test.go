// internal/pkg/outbox/store_test.go
package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(gormmysql.New(gormmysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	return db, mock
}

func TestGormStoreAppend(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewGormStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `outbox`").
		WithArgs("order-1", "ORDER_CREATED", []byte(`{}`), string(StatusNew), 0, "", sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.Append(context.Background(), "order-1", "ORDER_CREATED", []byte(`{}`))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreFetchNew(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewGormStore(db)

	rows := sqlmock.NewRows([]string{"id", "aggregate_id", "event_type", "payload", "status", "retries", "last_error", "created_at", "sent_at"}).
		AddRow(1, "order-1", "ORDER_CREATED", []byte(`{}`), string(StatusNew), 0, "", time.Now(), nil).
		AddRow(2, "order-2", "ORDER_CREATED", []byte(`{}`), string(StatusNew), 3, "broker unavailable", time.Now(), nil)

	mock.ExpectQuery("SELECT \\* FROM `outbox` WHERE status = \\? ORDER BY id LIMIT \\?").
		WithArgs(string(StatusNew), 50).
		WillReturnRows(rows)

	records, err := store.FetchNew(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, uint64(1), records[0].ID)
	assert.Equal(t, "order-2", records[1].AggregateID)
	assert.Equal(t, 3, records[1].Retries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreMarkSent(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewGormStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `outbox` SET").
		WithArgs(sqlmock.AnyArg(), string(StatusSent), uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.MarkSent(context.Background(), 7)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreMarkFailed(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewGormStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `outbox` SET").
		WithArgs("broker unavailable", uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.MarkFailed(context.Background(), 7, errors.New("broker unavailable"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
