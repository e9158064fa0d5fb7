package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/orderstack/order-agent/internal/models"
)

// MemoryHistory keeps a bounded run history in process. It backs deployments without a database.
type MemoryHistory struct {
	mu       sync.RWMutex
	runs     []models.RunRecord
	capacity int
}

// NewMemoryHistory retains at most capacity runs (default 500), evicting the oldest.
func NewMemoryHistory(capacity int) *MemoryHistory {
	if capacity <= 0 {
		capacity = 500
	}
	return &MemoryHistory{capacity: capacity}
}

// SaveRun appends a record, ignoring duplicate run ids.
func (h *MemoryHistory) SaveRun(_ context.Context, rec models.RunRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, existing := range h.runs {
		if existing.RunID == rec.RunID {
			return nil
		}
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	h.runs = append(h.runs, rec)
	if len(h.runs) > h.capacity {
		h.runs = append([]models.RunRecord(nil), h.runs[len(h.runs)-h.capacity:]...)
	}
	return nil
}

// ListRuns mirrors PostgresHistory.ListRuns.
func (h *MemoryHistory) ListRuns(_ context.Context, req models.ListRunsRequest) (models.ListRunsResponse, error) {
	limit, offset := pageWindow(req)

	h.mu.RLock()
	matched := make([]models.RunRecord, 0, len(h.runs))
	for i := len(h.runs) - 1; i >= 0; i-- {
		rec := h.runs[i]
		if !req.Since.IsZero() && rec.CreatedAt.Before(req.Since) {
			continue
		}
		if req.OnlyFails && rec.Success {
			continue
		}
		matched = append(matched, rec)
	}
	h.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if offset >= len(matched) {
		return models.ListRunsResponse{Runs: []models.RunRecord{}}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	page := matched[offset:end]
	return models.ListRunsResponse{
		Runs:          page,
		NextPageToken: nextPageToken(offset, limit, len(page)),
	}, nil
}
