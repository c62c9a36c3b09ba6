package util

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	cases := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"off", true, false},
		{"0", true, false},
		{"garbage", true, true},
	}
	for _, c := range cases {
		t.Setenv("TEST_BOOL", c.value)
		if got := ParseBoolEnv("TEST_BOOL", c.def); got != c.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", c.value, c.def, got, c.want)
		}
	}
}

func TestParseDurationEnv(t *testing.T) {
	t.Setenv("TEST_DUR", "5m")
	if got := ParseDurationEnv("TEST_DUR", time.Minute); got != 5*time.Minute {
		t.Errorf("expected 5m, got %v", got)
	}
	t.Setenv("TEST_DUR", "-1s")
	if got := ParseDurationEnv("TEST_DUR", 30*time.Minute); got != 30*time.Minute {
		t.Errorf("expected default for negative duration, got %v", got)
	}
	t.Setenv("TEST_DUR", "nonsense")
	if got := ParseDurationEnv("TEST_DUR", 30*time.Minute); got != 30*time.Minute {
		t.Errorf("expected default for invalid duration, got %v", got)
	}
}

func TestReadTextFileOrDefault(t *testing.T) {
	const def = "built-in instructions"
	if got := ReadTextFileOrDefault("", def); got != def {
		t.Errorf("empty path: expected default, got %q", got)
	}
	if got := ReadTextFileOrDefault(filepath.Join(t.TempDir(), "missing.txt"), def); got != def {
		t.Errorf("missing file: expected default, got %q", got)
	}

	path := filepath.Join(t.TempDir(), "prompt.txt")
	if err := os.WriteFile(path, []byte("  speak slowly \n"), 0644); err != nil {
		t.Fatalf("write prompt file: %v", err)
	}
	if got := ReadTextFileOrDefault(path, def); got != "speak slowly" {
		t.Errorf("expected trimmed file contents, got %q", got)
	}
}

func TestGenerateMediaName(t *testing.T) {
	a, b := GenerateMediaName(), GenerateMediaName()
	if len(a) != len("halacha_")+24 {
		t.Errorf("unexpected media name length: %q", a)
	}
	if a == b {
		t.Errorf("expected distinct names, got %q twice", a)
	}
}
