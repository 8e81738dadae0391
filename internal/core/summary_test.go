package core

import "testing"

func TestSummarize(t *testing.T) {
	expenses := []Expense{
		{Category: "Food", Amount: MustMoney("10.10")},
		{Category: "Transport", Amount: MustMoney("30.00")},
		{Category: "Food", Amount: MustMoney("0.20")},
		{Category: "Books", Amount: MustMoney("10.30")},
	}

	ov := Summarize(expenses)
	if ov.Total.String() != "50.60" {
		t.Fatalf("total: got %s", ov.Total)
	}
	if ov.Count != 4 {
		t.Fatalf("count: got %d", ov.Count)
	}

	want := []struct{ name, amount string }{
		{"Transport", "30.00"},
		{"Books", "10.30"},
		{"Food", "10.30"},
	}
	if len(ov.ByCategory) != len(want) {
		t.Fatalf("expected %d categories, got %d", len(want), len(ov.ByCategory))
	}
	for i, w := range want {
		got := ov.ByCategory[i]
		if got.Name != w.name || got.Amount.String() != w.amount {
			t.Fatalf("row %d: expected %s=%s, got %s=%s", i, w.name, w.amount, got.Name, got.Amount)
		}
	}
}

func TestSummarizeEmpty(t *testing.T) {
	ov := Summarize(nil)
	if !ov.Total.IsZero() || ov.Count != 0 || len(ov.ByCategory) != 0 {
		t.Fatalf("expected empty overview, got %+v", ov)
	}
}

func TestCategories(t *testing.T) {
	got := Categories([]Expense{{Category: "b"}, {Category: "A"}, {Category: "b"}, {Category: ""}})
	if len(got) != 2 || got[0] != "A" || got[1] != "b" {
		t.Fatalf("unexpected categories %v", got)
	}
}
