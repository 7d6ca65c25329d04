package overlay

import (
	"image/color"
	"testing"
	"time"
)

func TestLayout(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		want    string
		wantErr bool
	}{
		{
			name:   "date and time",
			format: "%Y-%m-%d %H:%M:%S",
			want:   "2006-01-02 15:04:05",
		},
		{
			name:   "literal percent",
			format: "load %% %H:%M",
			want:   "load % 15:04",
		},
		{
			name:   "plain text passthrough",
			format: "printer cam",
			want:   "printer cam",
		},
		{
			name:    "unsupported directive",
			format:  "%Q",
			wantErr: true,
		},
		{
			name:    "trailing percent",
			format:  "%H:%M%",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Layout(tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Layout(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("Layout(%q) = %q, want %q", tt.format, got, tt.want)
			}
		})
	}
}

func TestLayout_FormatsKnownTime(t *testing.T) {
	layout, err := Layout("%Y-%m-%d_%H%M%S")
	if err != nil {
		t.Fatalf("Layout() error = %v", err)
	}

	ts := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	if got, want := ts.Format(layout), "2024-03-09_140507"; got != want {
		t.Errorf("formatted time = %q, want %q", got, want)
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		want    color.RGBA
		wantErr bool
	}{
		{
			name: "white",
			spec: "255,255,255",
			want: color.RGBA{R: 255, G: 255, B: 255, A: 255},
		},
		{
			name: "spaces allowed",
			spec: "0, 128, 64",
			want: color.RGBA{G: 128, B: 64, A: 255},
		},
		{
			name:    "too few components",
			spec:    "255,255",
			wantErr: true,
		},
		{
			name:    "out of range",
			spec:    "256,0,0",
			wantErr: true,
		},
		{
			name:    "not a number",
			spec:    "red,0,0",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseColor(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseColor(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ParseColor(%q) = %v, want %v", tt.spec, got, tt.want)
			}
		})
	}
}
