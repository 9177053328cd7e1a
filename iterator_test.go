package iamport

import (
	"context"
	"errors"
	"testing"
)

func TestIterate_SinglePage(t *testing.T) {
	items := []string{"item1", "item2", "item3"}

	fetcher := func(ctx context.Context, params PageParams) ([]string, Pagination, error) {
		if params.Page != 1 {
			t.Errorf("expected Page = 1, got %d", params.Page)
		}
		if params.Limit != 100 {
			t.Errorf("expected Limit = 100, got %d", params.Limit)
		}
		return items, Pagination{Total: 3}, nil
	}

	var collected []string
	for item, err := range iterate(context.Background(), PageParams{}, fetcher) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		collected = append(collected, item)
	}

	if len(collected) != len(items) {
		t.Errorf("expected %d items, got %d", len(items), len(collected))
	}

	for i, item := range collected {
		if item != items[i] {
			t.Errorf("item[%d] = %v, want %v", i, item, items[i])
		}
	}
}

func TestIterate_MultiplePages(t *testing.T) {
	callCount := 0
	fetcher := func(ctx context.Context, params PageParams) ([]string, Pagination, error) {
		callCount++

		switch params.Page {
		case 1:
			return []string{"item1", "item2"}, Pagination{Total: 5, Next: 2}, nil
		case 2:
			return []string{"item3", "item4"}, Pagination{Total: 5, Previous: 1, Next: 3}, nil
		case 3:
			return []string{"item5"}, Pagination{Total: 5, Previous: 2}, nil
		default:
			t.Fatalf("unexpected page number: %d", params.Page)
			return nil, Pagination{}, nil
		}
	}

	var collected []string
	for item, err := range iterate(context.Background(), PageParams{Limit: 2}, fetcher) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		collected = append(collected, item)
	}

	want := []string{"item1", "item2", "item3", "item4", "item5"}
	if len(collected) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(collected))
	}

	for i, item := range collected {
		if item != want[i] {
			t.Errorf("item[%d] = %v, want %v", i, item, want[i])
		}
	}

	if callCount != 3 {
		t.Errorf("expected 3 fetcher calls, got %d", callCount)
	}
}

func TestIterate_KeepsParams(t *testing.T) {
	fetcher := func(ctx context.Context, params PageParams) ([]string, Pagination, error) {
		if params.Limit != 20 || params.Sorting != "-paid" {
			t.Errorf("params not forwarded: %+v", params)
		}
		if params.Page != 4 {
			t.Errorf("expected Page = 4, got %d", params.Page)
		}
		return []string{"item"}, Pagination{}, nil
	}

	for _, err := range iterate(context.Background(), PageParams{Page: 4, Limit: 20, Sorting: "-paid"}, fetcher) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

func TestIterate_EmptyResults(t *testing.T) {
	callCount := 0
	fetcher := func(ctx context.Context, params PageParams) ([]string, Pagination, error) {
		callCount++
		return []string{}, Pagination{Next: 2}, nil
	}

	count := 0
	for _, err := range iterate(context.Background(), PageParams{}, fetcher) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		count++
	}

	if count != 0 {
		t.Errorf("expected 0 items, got %d", count)
	}
	if callCount != 1 {
		t.Errorf("expected 1 fetcher call, got %d", callCount)
	}
}

func TestIterate_Error(t *testing.T) {
	wantErr := errors.New("fetch failed")
	fetcher := func(ctx context.Context, params PageParams) ([]string, Pagination, error) {
		if params.Page == 2 {
			return nil, Pagination{}, wantErr
		}
		return []string{"item1"}, Pagination{Next: 2}, nil
	}

	var items []string
	var gotErr error
	for item, err := range iterate(context.Background(), PageParams{}, fetcher) {
		if err != nil {
			gotErr = err
			break
		}
		items = append(items, item)
	}

	if !errors.Is(gotErr, wantErr) {
		t.Errorf("expected error %v, got %v", wantErr, gotErr)
	}
	if len(items) != 1 {
		t.Errorf("expected 1 item before the error, got %d", len(items))
	}
}

func TestIterate_EarlyBreak(t *testing.T) {
	callCount := 0
	fetcher := func(ctx context.Context, params PageParams) ([]string, Pagination, error) {
		callCount++
		return []string{"a", "b", "c"}, Pagination{Next: params.Page + 1}, nil
	}

	for item, err := range iterate(context.Background(), PageParams{}, fetcher) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if item == "b" {
			break
		}
	}

	if callCount != 1 {
		t.Errorf("expected 1 fetcher call, got %d", callCount)
	}
}

func TestIterate_StaleNextPage(t *testing.T) {
	callCount := 0
	fetcher := func(ctx context.Context, params PageParams) ([]string, Pagination, error) {
		callCount++
		if callCount > 2 {
			t.Fatalf("iterator did not stop")
		}
		return []string{"a"}, Pagination{Next: 1}, nil
	}

	for _, err := range iterate(context.Background(), PageParams{}, fetcher) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if callCount != 1 {
		t.Errorf("expected 1 fetcher call, got %d", callCount)
	}
}
