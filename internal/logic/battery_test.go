package logic

import "testing"

func TestBatteryPercent(t *testing.T) {
	tests := []struct {
		name       string
		millivolts uint32
		expected   int
	}{
		{"full cell", 4200, 100},
		{"within tolerance", 4150, 100},
		{"linear segment top", 4149, 94},
		{"knee", 3870, 60},
		{"logistic segment", 3600, 5},
		{"empty", 3300, 0},
		{"below empty", 3000, 0},
		{"overcharged", 4400, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BatteryPercent(tt.millivolts, 50)
			if got != tt.expected {
				t.Errorf("BatteryPercent(%d) = %d, expected %d", tt.millivolts, got, tt.expected)
			}
		})
	}
}

func TestBatteryPercentMonotonic(t *testing.T) {
	prev := 0
	for mv := uint32(3000); mv <= 4300; mv += 10 {
		pct := BatteryPercent(mv, 50)
		if pct < prev {
			t.Fatalf("percent dropped from %d to %d at %dmV", prev, pct, mv)
		}
		if pct < 0 || pct > 100 {
			t.Fatalf("percent %d out of range at %dmV", pct, mv)
		}
		prev = pct
	}
}

func TestBatteryText(t *testing.T) {
	if got := BatteryText(5); got != "5%" {
		t.Errorf("expected 5%%, got %q", got)
	}
	if got := BatteryText(100); got != "100%" {
		t.Errorf("expected 100%%, got %q", got)
	}
}
