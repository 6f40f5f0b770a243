package rules

import "testing"

func TestAgeAllowedBounds(t *testing.T) {
	testCases := []struct {
		age  int
		want bool
	}{
		{age: 17, want: false},
		{age: 18, want: true},
		{age: 64, want: true},
		{age: 120, want: true},
		{age: 121, want: false},
		{age: 0, want: false},
	}

	for _, tc := range testCases {
		if got := AgeAllowed(tc.age); got != tc.want {
			t.Fatalf("unexpected AgeAllowed(%d): got %v want %v", tc.age, got, tc.want)
		}
	}
}
