package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolcrm/core"
)

// postgres error codes
const (
	foreignKeyViolation = "23503"
	uniqueViolation     = "23505"
)

func newID() string {
	return uuid.NewString()
}

// isUUID accepts the canonical (lowercase, hyphenated) ids postgres returns.
// Any other spelling cannot match a row.
func isUUID(id string) bool {
	u, err := uuid.Parse(id)
	return err == nil && u.String() == id
}

func isPQError(err error, code string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == code
}

// withTx runs `fn` in a transaction, committed only if `fn` succeeds.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func likePattern(search string) string {
	return "%" + search + "%"
}

func toDate(t time.Time) core.Date {
	if t.IsZero() {
		return core.Date{}
	}
	y, m, d := t.Date()
	return core.NewDate(y, m, d)
}

func utc(t time.Time) time.Time {
	return t.UTC()
}
