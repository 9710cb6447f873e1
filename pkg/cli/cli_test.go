package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseArgs_ValidArgs(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("SMFDECODE_WORKERS", "")

	tests := []struct {
		name     string
		args     []string
		expected Config
	}{
		{
			name: "ファイルのみ指定",
			args: []string{"song.mid"},
			expected: Config{
				FilePath: "song.mid",
				LogLevel: "info",
				Format:   FormatText,
			},
		},
		{
			name: "ログレベル指定",
			args: []string{"--log-level", "debug", "song.mid"},
			expected: Config{
				FilePath: "song.mid",
				LogLevel: "debug",
				Format:   FormatText,
			},
		},
		{
			name: "ログレベル指定（短縮形）",
			args: []string{"-l", "error", "song.mid"},
			expected: Config{
				FilePath: "song.mid",
				LogLevel: "error",
				Format:   FormatText,
			},
		},
		{
			name: "並列数指定",
			args: []string{"--workers", "4", "song.mid"},
			expected: Config{
				FilePath: "song.mid",
				LogLevel: "info",
				Workers:  4,
				Format:   FormatText,
			},
		},
		{
			name: "JSON出力（短縮形、大文字）",
			args: []string{"-f", "JSON", "song.mid"},
			expected: Config{
				FilePath: "song.mid",
				LogLevel: "info",
				Format:   FormatJSON,
			},
		},
		{
			name: "上限指定（=形式）",
			args: []string{"--limit=25", "song.mid"},
			expected: Config{
				FilePath: "song.mid",
				LogLevel: "info",
				Format:   FormatText,
				Limit:    25,
			},
		},
		{
			name: "ヘルプ表示（ファイル不要）",
			args: []string{"-h"},
			expected: Config{
				LogLevel: "info",
				Format:   FormatText,
				ShowHelp: true,
			},
		},
		{
			name: "位置引数が最初（順序に関係なく動作）",
			args: []string{"/music/SONG.MID", "--tracks", "-n", "10", "-w", "2"},
			expected: Config{
				FilePath:   "/music/SONG.MID",
				LogLevel:   "info",
				Workers:    2,
				Format:     FormatText,
				Limit:      10,
				ShowTracks: true,
			},
		},
		{
			name: "ブール型フラグの後に位置引数",
			args: []string{"--tracks", "song.mid"},
			expected: Config{
				FilePath:   "song.mid",
				LogLevel:   "info",
				Format:     FormatText,
				ShowTracks: true,
			},
		},
		{
			name: "ハイフンで始まるファイル名（-- の後）",
			args: []string{"-f", "json", "--", "-odd.mid"},
			expected: Config{
				FilePath: "-odd.mid",
				LogLevel: "info",
				Format:   FormatJSON,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := ParseArgs(tt.args)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if *config != tt.expected {
				t.Errorf("config = %+v, want %+v", *config, tt.expected)
			}
		})
	}
}

func TestParseArgs_Env(t *testing.T) {
	t.Run("環境変数からログレベルと並列数を取得", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "WARN")
		t.Setenv("SMFDECODE_WORKERS", "3")

		config, err := ParseArgs([]string{"song.mid"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if config.LogLevel != "warn" {
			t.Errorf("LogLevel = %q, want %q", config.LogLevel, "warn")
		}
		if config.Workers != 3 {
			t.Errorf("Workers = %d, want 3", config.Workers)
		}
	})

	t.Run("コマンドラインフラグが優先", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "")
		t.Setenv("SMFDECODE_WORKERS", "3")

		config, err := ParseArgs([]string{"-w", "0", "song.mid"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if config.Workers != 0 {
			t.Errorf("Workers = %d, want 0", config.Workers)
		}
	})

	t.Run("無効な並列数の環境変数", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "")
		t.Setenv("SMFDECODE_WORKERS", "many")

		if _, err := ParseArgs([]string{"song.mid"}); err == nil {
			t.Error("expected error, got nil")
		}
	})
}

func TestParseArgs_InvalidArgs(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("SMFDECODE_WORKERS", "")

	tests := []struct {
		name string
		args []string
	}{
		{name: "ファイル未指定", args: []string{}},
		{name: "位置引数が多すぎる", args: []string{"a.mid", "b.mid"}},
		{name: "無効なログレベル", args: []string{"--log-level", "invalid", "song.mid"}},
		{name: "無効なログレベル（短縮形）", args: []string{"-l", "trace", "song.mid"}},
		{name: "負の並列数", args: []string{"--workers", "-2", "song.mid"}},
		{name: "無効な出力形式", args: []string{"--format", "xml", "song.mid"}},
		{name: "負の上限", args: []string{"-n", "-1", "song.mid"}},
		{name: "数値でない上限", args: []string{"-n", "ten", "song.mid"}},
		{name: "未知のフラグ", args: []string{"--loop", "song.mid"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseArgs(tt.args)
			if err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestReorderArgs(t *testing.T) {
	got := reorderArgs([]string{"song.mid", "-n", "5", "--tracks", "--format=json"})
	want := []string{"-n", "5", "--tracks", "--format=json", "--", "song.mid"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("reorderArgs = %v, want %v", got, want)
	}
}

func TestPrintHelp(t *testing.T) {
	var buf bytes.Buffer
	PrintHelp(&buf)
	for _, want := range []string{"smfdecode [options] <file.mid>", "--workers", "SMFDECODE_WORKERS"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("help output missing %q", want)
		}
	}
}
