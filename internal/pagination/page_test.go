package pagination

import (
	"testing"
	"time"
)

func TestClampPageSize(t *testing.T) {
	cfg := PageSizeConfig{Default: 20, Max: 100}
	tests := []struct {
		in, want int
	}{
		{0, 20},
		{-5, 20},
		{1, 1},
		{100, 100},
		{500, 100},
	}
	for _, tt := range tests {
		if got := ClampPageSize(tt.in, cfg); got != tt.want {
			t.Fatalf("ClampPageSize(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
	if got := ClampPageSize(0, PageSizeConfig{}); got != 1 {
		t.Fatalf("expected floor of 1, got %d", got)
	}
}

func TestTrim(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	stamp := func(i int) time.Time { return base.Add(-time.Duration(i) * time.Minute) }

	page := Trim([]int{0, 1, 2}, 2, stamp)
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(page.Items))
	}
	if page.NextCursor == nil || !page.NextCursor.Equal(stamp(1)) {
		t.Fatalf("expected cursor at last returned item, got %v", page.NextCursor)
	}

	last := Trim([]int{0, 1}, 2, stamp)
	if last.NextCursor != nil {
		t.Fatalf("expected no cursor on last page, got %v", last.NextCursor)
	}

	empty := Trim[int](nil, 2, stamp)
	if empty.Items == nil || len(empty.Items) != 0 {
		t.Fatalf("expected empty non-nil items, got %#v", empty.Items)
	}
}
