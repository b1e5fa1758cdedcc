package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/vetclinic-api/internal/model"
	"github.com/jwalitptl/vetclinic-api/internal/repository"
)

var fixedNow = time.Date(2030, 5, 1, 8, 0, 0, 0, time.UTC)

func newMockBase(t *testing.T) (BaseRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	base := NewBaseRepository(sqlx.NewDb(db, "postgres"))
	base.now = func() time.Time { return fixedNow }
	return base, mock
}

func appointmentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "patient_id", "veterinarian_id", "scheduled_at", "service_type", "status",
		"reason", "triage_level", "cancel_reason", "cancelled_at", "completed_at",
		"created_at", "updated_at", "created_by", "updated_by",
	})
}

func TestAppointmentCreateStampsActor(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewAppointmentRepository(base)

	actor := uuid.New()
	ctx := model.WithActor(context.Background(), model.Actor{ID: actor, Role: model.PartyRoleSecretary})

	apt := &model.Appointment{
		PatientID:      uuid.New(),
		VeterinarianID: uuid.New(),
		ScheduledAt:    fixedNow.Add(24 * time.Hour),
		ServiceType:    "checkup",
		Status:         model.AppointmentStatusScheduled,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO appointments")).
		WithArgs(sqlmock.AnyArg(), apt.PatientID, apt.VeterinarianID, apt.ScheduledAt, "checkup",
			model.AppointmentStatusScheduled, "", "", nil, nil, nil, fixedNow, fixedNow, &actor, &actor).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(ctx, apt))
	assert.NotEqual(t, uuid.Nil, apt.ID)
	assert.Equal(t, fixedNow, apt.CreatedAt)
	require.NotNil(t, apt.CreatedBy)
	assert.Equal(t, actor, *apt.CreatedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentCreateMapsUniqueViolation(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewAppointmentRepository(base)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO appointments")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_appointments_vet_slot"})

	err := repo.Create(context.Background(), &model.Appointment{Status: model.AppointmentStatusScheduled})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestAppointmentGetNotFound(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewAppointmentRepository(base)

	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("FROM appointments WHERE id = $1")).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), id)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestFindConflictingExcludesSelf(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewAppointmentRepository(base)

	vet, self, other := uuid.New(), uuid.New(), uuid.New()
	from, to := fixedNow, fixedNow.Add(time.Hour)
	at := fixedNow.Add(20 * time.Minute)

	mock.ExpectQuery(`status = 'scheduled'\s+AND scheduled_at > \$2\s+AND scheduled_at < \$3\s+AND id <> \$4 ORDER BY scheduled_at ASC`).
		WithArgs(vet, from, to, self).
		WillReturnRows(appointmentRows().AddRow(
			other, uuid.New(), vet, at, "surgery", "scheduled",
			"", "", nil, nil, nil, fixedNow, fixedNow, nil, nil,
		))

	conflicts, err := repo.FindConflicting(context.Background(), vet, from, to, &self)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, other, conflicts[0].ID)
	assert.Equal(t, model.AppointmentStatusScheduled, conflicts[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateIfStatus(t *testing.T) {
	reason := "owner travelling"
	apt := &model.Appointment{
		Base:         model.Base{ID: uuid.New()},
		ScheduledAt:  fixedNow.Add(48 * time.Hour),
		Status:       model.AppointmentStatusCancelled,
		CancelReason: &reason,
		CancelledAt:  &fixedNow,
	}

	t.Run("applies when status matches", func(t *testing.T) {
		base, mock := newMockBase(t)
		repo := NewAppointmentRepository(base)

		mock.ExpectExec(regexp.QuoteMeta("WHERE id = $8 AND status = $9")).
			WithArgs(apt.ScheduledAt, model.AppointmentStatusCancelled, &reason, &fixedNow, nil,
				fixedNow, nil, apt.ID, model.AppointmentStatusScheduled).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.UpdateIfStatus(context.Background(), apt, model.AppointmentStatusScheduled))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports lost race", func(t *testing.T) {
		base, mock := newMockBase(t)
		repo := NewAppointmentRepository(base)

		mock.ExpectExec(regexp.QuoteMeta("UPDATE appointments")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateIfStatus(context.Background(), apt, model.AppointmentStatusScheduled)
		assert.ErrorIs(t, err, repository.ErrStateChanged)
	})
}

func TestListAppliesFiltersAndPaging(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewAppointmentRepository(base)

	vet := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("AND veterinarian_id = $1 AND status = $2 ORDER BY scheduled_at ASC, id ASC LIMIT $3 OFFSET $4")).
		WithArgs(vet, model.AppointmentStatusScheduled, model.DefaultPageSize, 0).
		WillReturnRows(appointmentRows())

	list, err := repo.List(context.Background(), model.AppointmentFilter{
		VeterinarianID: &vet,
		Status:         model.AppointmentStatusScheduled,
	})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}
