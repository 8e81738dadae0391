package core

import "testing"

func TestCanonicalPayload(t *testing.T) {
	in := ExpenseInput{
		Amount:      MustMoney("12.5"),
		Category:    "Food",
		Description: strPtr("lunch"),
		Date:        NewDate(2024, 1, 1),
	}
	want := `{"amount":"12.50","category":"Food","date":"2024-01-01","description":"lunch"}`
	if got := string(CanonicalPayload(in)); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestRequestHash(t *testing.T) {
	base := ExpenseInput{
		Amount:   MustMoney("12.50"),
		Category: "Food",
		Date:     NewDate(2024, 1, 1),
	}

	h := RequestHash(base)
	if len(h) != 64 {
		t.Fatalf("expected hex sha256, got %q", h)
	}
	if RequestHash(base) != h {
		t.Fatalf("hash must be deterministic")
	}

	t.Run("absent and empty description collide", func(t *testing.T) {
		empty := base
		empty.Description = strPtr("")
		if RequestHash(empty) != h {
			t.Fatalf("nil and empty description should hash identically")
		}
	})

	t.Run("equivalent amounts collide", func(t *testing.T) {
		short := base
		short.Amount = MustMoney("12.5")
		if RequestHash(short) != h {
			t.Fatalf("12.5 and 12.50 should hash identically")
		}
	})

	t.Run("differing fields do not collide", func(t *testing.T) {
		variants := []ExpenseInput{base, base, base, base}
		variants[0].Amount = MustMoney("12.51")
		variants[1].Category = "food"
		variants[2].Date = NewDate(2024, 1, 2)
		variants[3].Description = strPtr("x")
		for i, v := range variants {
			if RequestHash(v) == h {
				t.Fatalf("variant %d collided with base", i)
			}
		}
	})
}
