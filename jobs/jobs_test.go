package jobs

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeCleaner struct{ calls int }

func (f *fakeCleaner) Cleanup(time.Time) int {
	f.calls++
	return 0
}

func newScheduler(t *testing.T) (*Scheduler, sqlmock.Sqlmock, *test.Hook) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	log, hook := test.NewNullLogger()
	s, err := New(db, log, &fakeCleaner{})
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s, mock, hook
}

func TestNewRegistersJobs(t *testing.T) {
	s, _, _ := newScheduler(t)
	assert.Len(t, s.cron.Entries(), 3)
}

func TestPurgeExpiredTokens(t *testing.T) {
	s, mock, hook := newScheduler(t)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `refresh_tokens` WHERE expires_at <= \\?").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	s.PurgeExpiredTokens()

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Equal(t, int64(3), hook.LastEntry().Data["deleted"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurgeExpiredTokensLogsFailure(t *testing.T) {
	s, mock, hook := newScheduler(t)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `refresh_tokens`").WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	s.PurgeExpiredTokens()

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestCancelStaleOrdersNothingToDo(t *testing.T) {
	s, mock, hook := newScheduler(t)
	mock.ExpectQuery("SELECT \\* FROM `orders`").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	s.CancelStaleOrders()

	assert.Empty(t, hook.AllEntries())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCronLoggerFields(t *testing.T) {
	assert.Equal(t, logrus.Fields{"entry": 1, "next": "soon"}, fields([]any{"entry", 1, "next", "soon", "dangling"}))
}
