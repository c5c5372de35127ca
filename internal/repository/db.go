package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries groups every repository over one connection or transaction.
type Queries struct {
	*UserRepository
	*ProfileRepository
	*StudentRepository
	*TrainingRepository
	*SessionRepository
	*LiveStreamRepository
	*VideoRepository
	*QuestionRepository
	*NotificationRepository
}

func NewQueries(db DBTX) *Queries {
	return &Queries{
		UserRepository:         NewUserRepository(db),
		ProfileRepository:      NewProfileRepository(db),
		StudentRepository:      NewStudentRepository(db),
		TrainingRepository:     NewTrainingRepository(db),
		SessionRepository:      NewSessionRepository(db),
		LiveStreamRepository:   NewLiveStreamRepository(db),
		VideoRepository:        NewVideoRepository(db),
		QuestionRepository:     NewQuestionRepository(db),
		NotificationRepository: NewNotificationRepository(db),
	}
}

type Transactor struct {
	pool *pgxpool.Pool
}

func NewTransactor(pool *pgxpool.Pool) *Transactor {
	return &Transactor{pool: pool}
}

// WithTx runs fn inside one transaction. Any error from fn rolls back.
func (t *Transactor) WithTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(NewQueries(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func collectInt64s(rows pgx.Rows, err error) ([]int64, error) {
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}
