package blending

import "testing"

func TestWeightDeviation(t *testing.T) {
	cases := []struct {
		target, actual, want float64
	}{
		{100, 104, 4.0},
		{100, 110, 10.0},
		{100, 96, -4.0},
		{0, 50, 0},
		{30, 31, 3.33},
	}
	for _, tc := range cases {
		if got := weightDeviation(tc.target, tc.actual); got != tc.want {
			t.Errorf("weightDeviation(%v, %v) = %v, want %v", tc.target, tc.actual, got, tc.want)
		}
	}
}

func TestCheckTolerance(t *testing.T) {
	deviation, err := checkTolerance(100, 104, 5)
	if err != nil {
		t.Fatalf("4%% deviation within 5%% tolerance: %v", err)
	}
	if deviation != 4.0 {
		t.Errorf("expected deviation 4.0, got %v", deviation)
	}

	_, err = checkTolerance(100, 110, 5)
	tolErr, ok := err.(*ToleranceError)
	if !ok {
		t.Fatalf("expected ToleranceError, got %v", err)
	}
	if tolErr.Deviation != 10.0 || tolErr.Tolerance != 5 {
		t.Errorf("unexpected tolerance error: %+v", tolErr)
	}

	// Negative deviations count against the band too.
	if _, err := checkTolerance(100, 94, 5); err == nil {
		t.Error("expected rejection for -6%% deviation")
	}
}
