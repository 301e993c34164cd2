package postgres

import "testing"

func TestClampPosition(t *testing.T) {
	cases := []struct {
		name     string
		position int
		count    int
		entering bool
		want     int
	}{
		{name: "within range stays", position: 1, count: 3, want: 1},
		{name: "beyond end clamps to last slot", position: 100, count: 2, want: 1},
		{name: "end of own scope", position: 2, count: 3, want: 2},
		{name: "entering scope appends", position: 2, count: 2, entering: true, want: 2},
		{name: "entering beyond end clamps to append slot", position: 100, count: 2, entering: true, want: 2},
		{name: "entering empty scope", position: 5, count: 0, entering: true, want: 0},
		{name: "negative clamps to zero", position: -4, count: 3, want: 0},
		{name: "only row in own scope", position: 7, count: 1, want: 0},
	}
	for _, tc := range cases {
		if got := clampPosition(tc.position, tc.count, tc.entering); got != tc.want {
			t.Fatalf("%s: clampPosition(%d, %d, %v) = %d, want %d", tc.name, tc.position, tc.count, tc.entering, got, tc.want)
		}
	}
}
