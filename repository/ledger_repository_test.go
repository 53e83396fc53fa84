package repository_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/lanre647/latodabags/models"
	"github.com/lanre647/latodabags/repository"
)

func TestRecordSuccess_FirstWriterCompletesOrder(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormLedgerRepo(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "ledger_entries"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	authCode := "AUTH_x9y8z7"
	outcome, err := repo.RecordSuccess(context.Background(), repository.SuccessRecord{
		Reference:         "ltb-ref-first",
		OrderID:           uuid.New(),
		Source:            "charge.success",
		AuthorizationCode: &authCode,
		PaidAt:            time.Now().UTC(),
	})
	assert.NoError(t, err)
	assert.Equal(t, repository.ApplyCompleted, outcome)
}

func TestRecordSuccess_DuplicateReference(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormLedgerRepo(gormDB)

	// Conflict on the unique reference index: insert returns no row and the
	// order must not be touched.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "ledger_entries"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	outcome, err := repo.RecordSuccess(context.Background(), repository.SuccessRecord{
		Reference: "ltb-ref-dup",
		OrderID:   uuid.New(),
		Source:    models.LedgerSourceVerify,
		PaidAt:    time.Now().UTC(),
	})
	assert.NoError(t, err)
	assert.Equal(t, repository.ApplyDuplicate, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSuccess_OrderAlreadyTerminal(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormLedgerRepo(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "ledger_entries"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "ledger_entries"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	outcome, err := repo.RecordSuccess(context.Background(), repository.SuccessRecord{
		Reference: "ltb-ref-stale",
		OrderID:   uuid.New(),
		Source:    "charge.success",
		PaidAt:    time.Now().UTC(),
	})
	assert.NoError(t, err)
	assert.Equal(t, repository.ApplyIgnored, outcome)
}

func TestLedgerFindByReference_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormLedgerRepo(gormDB)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "reference", "order_id", "outcome", "source", "created_at"}).
		AddRow(uuid.New(), "ltb-ref-found", uuid.New(), models.LedgerOutcomeApplied, "charge.success", now)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "ledger_entries"`)).
		WillReturnRows(rows)

	entry, err := repo.FindByReference(context.Background(), "ltb-ref-found")
	assert.NoError(t, err)
	assert.Equal(t, models.LedgerOutcomeApplied, entry.Outcome)
}
