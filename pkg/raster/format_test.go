package raster

import "testing"

func TestLookupFormat(t *testing.T) {
	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"png", "png", true},
		{"PNG", "png", true},
		{"jpeg", "jpeg", true},
		{"jpg", "jpeg", true},
		{"image/jpeg", "jpeg", true},
		{"webp", "webp", true},
		{"gif", "gif", true},
		{"avif", "avif", true},
		{"bmp", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		f, ok := LookupFormat(tt.name)
		if ok != tt.ok {
			t.Errorf("LookupFormat(%q) ok = %v, want %v", tt.name, ok, tt.ok)
			continue
		}
		if ok && f.Name != tt.want {
			t.Errorf("LookupFormat(%q) = %s, want %s", tt.name, f.Name, tt.want)
		}
	}
}

func TestFormatCeilings(t *testing.T) {
	for _, name := range Formats() {
		f, ok := LookupFormat(name)
		if !ok {
			t.Fatalf("built-in format %s missing", name)
		}
		if f.MaxDim <= 0 {
			t.Errorf("%s: MaxDim = %d", name, f.MaxDim)
		}
		if f.MaxPixels <= 0 {
			t.Errorf("%s: MaxPixels = %d", name, f.MaxPixels)
		}
		if f.Ext == "" || f.MIME == "" {
			t.Errorf("%s: incomplete format %+v", name, f)
		}
	}
}

func TestFallbackIsPNG(t *testing.T) {
	if Fallback.Name != "png" {
		t.Errorf("Fallback = %s, want png", Fallback.Name)
	}
}
