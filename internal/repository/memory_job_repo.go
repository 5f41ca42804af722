package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/socio-dl/socio-go/internal/model"
)

// MemoryJobRepo keeps history in process memory. It is used when no database
// is configured; records are lost on restart.
type MemoryJobRepo struct {
	mu      sync.RWMutex
	byID    map[string]struct{}
	records map[string][]memoryRow
	seq     int64
	maxList int
}

type memoryRow struct {
	seq int64
	rec model.JobRecord
}

func NewMemoryJobRepo(maxList int) *MemoryJobRepo {
	return &MemoryJobRepo{
		byID:    make(map[string]struct{}),
		records: make(map[string][]memoryRow),
		maxList: maxList,
	}
}

func (r *MemoryJobRepo) Append(_ context.Context, rec *model.JobRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.byID[rec.ID]; dup {
		return fmt.Errorf("append job %s: duplicate id", rec.ID)
	}
	r.seq++
	cp := *rec
	if rec.ExpiresAt != nil {
		t := *rec.ExpiresAt
		cp.ExpiresAt = &t
	}
	r.byID[rec.ID] = struct{}{}
	r.records[rec.Identity] = append(r.records[rec.Identity], memoryRow{seq: r.seq, rec: cp})
	return nil
}

func (r *MemoryJobRepo) ListByIdentity(_ context.Context, identity string, limit int) ([]model.JobRecord, error) {
	limit = ClampLimit(limit, r.maxList)

	r.mu.RLock()
	rows := make([]memoryRow, len(r.records[identity]))
	copy(rows, r.records[identity])
	r.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].rec.CreatedAt.Equal(rows[j].rec.CreatedAt) {
			return rows[i].rec.CreatedAt.After(rows[j].rec.CreatedAt)
		}
		return rows[i].seq > rows[j].seq
	})

	out := make([]model.JobRecord, 0, min(limit, len(rows)))
	for i := 0; i < len(rows) && i < limit; i++ {
		out = append(out, rows[i].rec)
	}
	return out, nil
}
