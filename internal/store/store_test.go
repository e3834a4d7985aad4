package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"wallet/internal/core"
)

func TestNewestFirst(t *testing.T) {
	noon := time.Date(2024, 1, 16, 12, 0, 0, 0, time.UTC)
	list := []core.Transaction{
		{ID: 1, Date: core.NewDate(2024, 1, 15), CreatedAt: noon},
		{ID: 2, Date: core.NewDate(2024, 1, 16), CreatedAt: noon},
		{ID: 3, Date: core.NewDate(2024, 1, 16), CreatedAt: noon.Add(time.Hour)},
		{ID: 4, Date: core.NewDate(2024, 1, 16), CreatedAt: noon},
	}

	got := NewestFirst(list, 0)
	var ids []int64
	for _, tx := range got {
		ids = append(ids, tx.ID)
	}
	assert.Equal(t, []int64{3, 4, 2, 1}, ids)

	assert.Len(t, NewestFirst(got, 2), 2)
	assert.Len(t, NewestFirst(got, 10), 4)
}
