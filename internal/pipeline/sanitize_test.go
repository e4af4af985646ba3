package pipeline

import "testing"

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "photo.jpg", "photo.jpg"},
		{"spaces", "my holiday photo.jpg", "my_holiday_photo.jpg"},
		{"path traversal", "../../etc/passwd", "passwd"},
		{"windows path", `C:\Users\me\cat.png`, "cat.png"},
		{"unicode", "фото.png", "____.png"},
		{"special chars", "a;b|c&d.jpg", "a_b_c_d.jpg"},
		{"leading dots", "..hidden.jpg", "hidden.jpg"},
		{"empty", "", "upload"},
		{"only dots", "...", "upload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
