package store

import "testing"

func TestEpochNumber(t *testing.T) {
	cases := []struct {
		id   string
		want int
	}{
		{"epoch-0001", 1},
		{"epoch-0042", 42},
		{"epoch-10000", 10000},
	}
	for _, tc := range cases {
		got, err := epochNumber(tc.id)
		if err != nil {
			t.Fatalf("%s: %v", tc.id, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %d, want %d", tc.id, got, tc.want)
		}
	}
}

func TestEpochNumberMalformed(t *testing.T) {
	for _, id := range []string{"epoch-", "epoch-abc", "settlement-0001"} {
		if _, err := epochNumber(id); err == nil {
			t.Fatalf("%s: expected error", id)
		}
	}
}
