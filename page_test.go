package slicerpdf

import (
	"math"
	"testing"
)

func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestCmToInches(t *testing.T) {
	tests := []struct {
		cm   float64
		want float64
	}{
		{2.54, 1.0},
		{0, 0},
		{21.0, 8.2677},
		{29.7, 11.6929},
	}
	for _, tt := range tests {
		if got := cmToInches(tt.cm); !almostEqual(got, tt.want, 0.001) {
			t.Errorf("cmToInches(%v) = %v, want ~%v", tt.cm, got, tt.want)
		}
	}
}

func TestPageConfigResolved(t *testing.T) {
	var nilPC *PageConfig
	if r := nilPC.resolved(); r != DefaultPageConfig() {
		t.Errorf("nil resolved = %+v, want defaults", r)
	}

	r := (&PageConfig{}).resolved()
	if r.Size != A4 || r.Scale != 1.0 || r.Margin != UniformMargin(1.0) {
		t.Errorf("zero value resolved = %+v", r)
	}
	if r.PrintBackground {
		t.Error("explicit zero PrintBackground must be preserved")
	}

	r = (&PageConfig{Size: Letter, Orientation: Landscape, Scale: 0.5}).resolved()
	if r.Size != Letter || r.Orientation != Landscape || r.Scale != 0.5 {
		t.Errorf("explicit values not preserved: %+v", r)
	}
}

func TestPrintParams(t *testing.T) {
	pc := &PageConfig{
		Size:            A4,
		Orientation:     Landscape,
		Margin:          Margin{Top: 2.54, Right: 5.08, Bottom: 2.54, Left: 5.08},
		Scale:           0.8,
		PrintBackground: true,
	}
	p := pc.printParams()
	if !almostEqual(p.PaperWidth, 8.267, 0.01) || !almostEqual(p.PaperHeight, 11.693, 0.01) {
		t.Errorf("paper = %vx%v, want A4 in inches", p.PaperWidth, p.PaperHeight)
	}
	if !p.Landscape {
		t.Error("Landscape = false, want true")
	}
	if !almostEqual(p.MarginTop, 1.0, 0.001) || !almostEqual(p.MarginLeft, 2.0, 0.001) {
		t.Errorf("margins = top %v left %v", p.MarginTop, p.MarginLeft)
	}
	if p.Scale != 0.8 || !p.PrintBackground {
		t.Errorf("scale = %v printBackground = %v", p.Scale, p.PrintBackground)
	}
}

func TestParsePageSize(t *testing.T) {
	for name, want := range map[string]PageSize{"A4": A4, " letter ": Letter, "Tabloid": Tabloid} {
		got, err := ParsePageSize(name)
		if err != nil || got != want {
			t.Errorf("ParsePageSize(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParsePageSize("B5"); err == nil {
		t.Error("expected error for unknown size")
	}
}

func TestParseOrientation(t *testing.T) {
	if o, err := ParseOrientation("Landscape"); err != nil || o != Landscape {
		t.Errorf("got %v, %v", o, err)
	}
	if o, err := ParseOrientation(""); err != nil || o != Portrait {
		t.Errorf("got %v, %v", o, err)
	}
	if _, err := ParseOrientation("sideways"); err == nil {
		t.Error("expected error")
	}
}

func TestPageConfigValidate(t *testing.T) {
	tests := []struct {
		pc      PageConfig
		wantErr bool
	}{
		{DefaultPageConfig(), false},
		{PageConfig{}, false},
		{PageConfig{Scale: 3}, true},
		{PageConfig{Scale: 0.05}, true},
		{PageConfig{Margin: Margin{Top: -1}}, true},
		{PageConfig{Size: PageSize{Width: -1, Height: 10}}, true},
	}
	for _, tt := range tests {
		if err := tt.pc.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("Validate(%+v) = %v, wantErr %v", tt.pc, err, tt.wantErr)
		}
	}
}
