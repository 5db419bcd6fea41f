package scoring

import "testing"

func fptr(f float64) *float64 { return &f }

func TestBandForPercentage(t *testing.T) {
	tests := []struct {
		name    string
		percent float64
		want    float64
	}{
		{name: "perfect", percent: 100, want: 9.0},
		{name: "top threshold", percent: 95, want: 9.0},
		{name: "just below top", percent: 94.9, want: 8.5},
		{name: "eighty exact", percent: 80, want: 8.0},
		{name: "just below eighty", percent: 79.9, want: 7.5},
		{name: "fifty", percent: 50, want: 6.0},
		{name: "lowest step", percent: 12.5, want: 3.5},
		{name: "below table", percent: 12.4, want: 3.0},
		{name: "zero", percent: 0, want: 3.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BandForPercentage(tt.percent); got != tt.want {
				t.Errorf("BandForPercentage(%v) = %v, want %v", tt.percent, got, tt.want)
			}
		})
	}
}

func TestBandForPercentage_Monotonic(t *testing.T) {
	valid := map[float64]bool{}
	for b := 3.0; b <= 9.0; b += 0.5 {
		valid[b] = true
	}

	prev := 0.0
	count := map[float64]bool{}
	for p := 0.0; p <= 100.0; p += 0.1 {
		band := BandForPercentage(p)
		if !valid[band] {
			t.Fatalf("BandForPercentage(%v) = %v, not a valid band", p, band)
		}
		if band < prev {
			t.Fatalf("band decreased at %v%%: %v < %v", p, band, prev)
		}
		prev = band
		count[band] = true
	}
	if len(count) != 13 {
		t.Errorf("expected 13 distinct bands across the range, got %d", len(count))
	}
}

func TestRoundHalf(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{6.74, 6.5},
		{6.76, 7.0},
		{6.75, 7.0},
		{6.667, 6.5},
		{6.25, 6.5},
		{0, 0},
		{9, 9},
	}
	for _, tt := range tests {
		if got := RoundHalf(tt.in); got != tt.want {
			t.Errorf("RoundHalf(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRoundHalf_Idempotent(t *testing.T) {
	for x := 0.0; x <= 9.0; x += 0.01 {
		once := RoundHalf(x)
		if twice := RoundHalf(once); twice != once {
			t.Fatalf("RoundHalf not idempotent at %v: %v != %v", x, twice, once)
		}
	}
}

func TestCombineWritingBands(t *testing.T) {
	tests := []struct {
		name  string
		task1 *float64
		task2 *float64
		want  *float64
	}{
		{name: "both tasks", task1: fptr(6.0), task2: fptr(7.0), want: fptr(6.5)}, // (6+14)/3 = 6.667
		{name: "equal tasks", task1: fptr(7.0), task2: fptr(7.0), want: fptr(7.0)},
		{name: "only task1", task1: fptr(5.5), want: fptr(5.5)},
		{name: "only task2", task2: fptr(8.0), want: fptr(8.0)},
		{name: "neither", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CombineWritingBands(tt.task1, tt.task2)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("CombineWritingBands() = %v, want %v", got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("CombineWritingBands() = %v, want %v", *got, *tt.want)
			}
		})
	}
}

func TestCombineSpeakingBands(t *testing.T) {
	tests := []struct {
		name  string
		parts []*float64
		want  *float64
	}{
		{name: "three parts", parts: []*float64{fptr(6.0), fptr(7.0), fptr(7.0)}, want: fptr(6.5)}, // mean 6.667
		{name: "two parts", parts: []*float64{fptr(6.0), nil, fptr(7.0)}, want: fptr(6.5)},
		{name: "one part", parts: []*float64{nil, fptr(5.0), nil}, want: fptr(5.0)},
		{name: "none", parts: []*float64{nil, nil, nil}, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CombineSpeakingBands(tt.parts)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("CombineSpeakingBands() = %v, want %v", got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("CombineSpeakingBands() = %v, want %v", *got, *tt.want)
			}
		})
	}
}

func TestOverallBand(t *testing.T) {
	tests := []struct {
		name                                   string
		listening, reading, writing, speaking  *float64
		want                                   *float64
	}{
		{name: "all four", listening: fptr(8.0), reading: fptr(7.5), writing: fptr(6.5), speaking: fptr(7.0), want: fptr(7.5)}, // mean 7.25
		{name: "pending writing excluded", listening: fptr(8.0), reading: fptr(8.0), speaking: fptr(7.0), want: fptr(7.5)},     // mean 7.667
		{name: "single module", reading: fptr(6.0), want: fptr(6.0)},
		{name: "nothing scored", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OverallBand(tt.listening, tt.reading, tt.writing, tt.speaking)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("OverallBand() = %v, want %v", got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("OverallBand() = %v, want %v", *got, *tt.want)
			}
		})
	}
}
