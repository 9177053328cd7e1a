package iamport

import (
	"context"
	"iter"
	"time"
)

// Pagination represents the paging information of list responses.
type Pagination struct {
	Total    int `json:"total"`
	Previous int `json:"previous"`
	Next     int `json:"next"`
}

// PageParams represents pagination parameters for list requests.
type PageParams struct {
	Page  int `url:"page,omitempty"`
	Limit int `url:"limit,omitempty"`
	// From and To bound the payment time range.
	From time.Time `url:"from,omitempty,unix"`
	To   time.Time `url:"to,omitempty,unix"`
	// Sorting is one of -started, started, -paid, paid, -updated, updated.
	Sorting string `url:"sorting,omitempty"`
}

// paginatorFunc fetches a single page of items T.
type paginatorFunc[T any] func(context.Context, PageParams) ([]T, Pagination, error)

// iterate returns an iterator that walks through all pages using the provided fetcher.
func iterate[T any](ctx context.Context, params PageParams, fetch paginatorFunc[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		if params.Page == 0 {
			params.Page = 1
		}
		if params.Limit == 0 {
			params.Limit = 100
		}

		for {
			items, meta, err := fetch(ctx, params)
			if err != nil {
				yield(*new(T), err)
				return
			}

			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}

			if meta.Next <= params.Page || len(items) == 0 {
				return
			}
			params.Page = meta.Next
		}
	}
}
