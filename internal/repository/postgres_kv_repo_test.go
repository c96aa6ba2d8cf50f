package repository

import "testing"

// TestEscapeLikePrefix はLIKEメタ文字のエスケープを検証する。
func TestEscapeLikePrefix(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		want   string
	}{
		{"メタ文字なし", "ITEM:abc:", "ITEM:abc:"},
		{"パーセント", "ITEM:a%b:", `ITEM:a\%b:`},
		{"アンダースコア", "TYPE:a_b:", `TYPE:a\_b:`},
		{"バックスラッシュ", `PUSH:a\b:`, `PUSH:a\\b:`},
		{"複合", `K:%_\`, `K:\%\_\\`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := escapeLikePrefix(tt.prefix); got != tt.want {
				t.Errorf("escapeLikePrefix(%q) = %q, want %q", tt.prefix, got, tt.want)
			}
		})
	}
}
