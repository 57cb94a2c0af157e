package tools

import "testing"

func TestIsPrintable(t *testing.T) {
	if got := IsPrintable("abc\x00\x1bdef"); got != "abcdef" {
		t.Errorf("IsPrintable(string) = %q", got)
	}
	if got := IsPrintable([]byte("a\r\nb")); got != "ab" {
		t.Errorf("IsPrintable([]byte) = %q", got)
	}
	if got := IsPrintable([]rune("x\ty")); got != "xy" {
		t.Errorf("IsPrintable([]rune) = %q", got)
	}
}
