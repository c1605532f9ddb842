package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"bar_backoffice/internal/models"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestDBError_KeepsCause(t *testing.T) {
	err := dbError("locking table 4", context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrDatabaseError)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	pqErr := &pq.Error{Code: "23505"}
	var target *pq.Error
	assert.True(t, errors.As(dbError("insert", pqErr), &target))
	assert.Equal(t, "unique_violation", target.Code.Name())
}

func TestPeriodConditions(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	tableID := int64(9)

	where, args := periodConditions(2, nil, nil, nil)
	assert.Equal(t, " WHERE s.establishment_id = $1", where)
	assert.Equal(t, []interface{}{int64(2)}, args)

	where, args = periodConditions(2, &from, &to, &tableID)
	assert.Equal(t, " WHERE s.establishment_id = $1 AND s.settled_at >= $2 AND s.settled_at < $3 AND s.table_id = $4", where)
	assert.Equal(t, []interface{}{int64(2), from, to, tableID}, args)
}

func TestStatusStrings(t *testing.T) {
	assert.Equal(t, []string{"pending", "preparing", "ready", "delivered"}, statusStrings(models.ActiveOrderLineStatuses))
	assert.Empty(t, statusStrings(nil))
}
