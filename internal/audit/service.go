package audit

import (
	"context"
	"fmt"
)

// TimelineStore is the query surface the service needs.
type TimelineStore interface {
	Timeline(ctx context.Context, f TimelineFilters, limit, offset int) ([]Record, error)
}

// Service coordinates audit timeline reads.
type Service struct {
	store TimelineStore
}

// NewService constructs a timeline service.
func NewService(store TimelineStore) *Service {
	return &Service{store: store}
}

// Timeline fetches one page of the audit trail.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.store == nil {
		return Result{}, fmt.Errorf("audit: store not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	// One extra row tells us whether a next page exists.
	rows, err := s.store.Timeline(ctx, filters, pageSize+1, offset)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}
