package domain

import "testing"

func TestRatioApply(t *testing.T) {
	tests := []struct {
		name  string
		ratio Ratio
		stake Credits
		want  Credits
	}{
		{"EvenWin", RatioWin, 50, 100},
		{"Refund", RatioRefund, 77, 77},
		{"Lose", RatioLose, 500, 0},
		{"CommissionFloors", Ratio(195), 7, 13},    // 7 * 1.95 = 13.65 -> 13
		{"CommissionExact", Ratio(195), 100, 195},
		{"TieNine", Ratio(900), 10, 90},
		{"NaturalFloors", Ratio(250), 5, 12}, // 5 * 2.5 = 12.5 -> 12
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ratio.Apply(tt.stake); got != tt.want {
				t.Errorf("Ratio(%d).Apply(%d) = %d, want %d", tt.ratio, tt.stake, got, tt.want)
			}
		})
	}
}
