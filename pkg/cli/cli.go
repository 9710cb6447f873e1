package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// 出力形式
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config はコマンドライン引数から解析された設定を保持する
type Config struct {
	FilePath   string // 入力MIDIファイルのパス
	LogLevel   string // ログレベル（debug, info, warn, error）
	Workers    int    // トラックデコードの並列数（0は GOMAXPROCS）
	Format     string // 出力形式（text, json）
	Limit      int    // 出力するイベント数の上限（0は無制限）
	ShowTracks bool   // トラックごとのイベント数を表示
	ShowHelp   bool   // ヘルプ表示フラグ
}

// unsetWorkers は --workers が指定されなかったことを示す
const unsetWorkers = -1

// boolFlags は値を取らないフラグ（reorderArgs が次の引数を食べないようにする）
var boolFlags = map[string]bool{
	"-h":       true,
	"--h":      true,
	"-help":    true,
	"--help":   true,
	"-tracks":  true,
	"--tracks": true,
}

// ParseArgs コマンドライン引数を解析してConfigを返す
func ParseArgs(args []string) (*Config, error) {
	// 引数を並べ替え：フラグを前に、位置引数を後ろに
	reorderedArgs := reorderArgs(args)

	fs := flag.NewFlagSet("smfdecode", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	config := &Config{}

	workers := unsetWorkers
	fs.StringVar(&config.LogLevel, "log-level", "info", "ログレベル（debug, info, warn, error）")
	fs.StringVar(&config.LogLevel, "l", "info", "ログレベル（短縮形）")
	fs.IntVar(&workers, "workers", unsetWorkers, "トラックデコードの並列数")
	fs.IntVar(&workers, "w", unsetWorkers, "トラックデコードの並列数（短縮形）")
	fs.StringVar(&config.Format, "format", FormatText, "出力形式（text, json）")
	fs.StringVar(&config.Format, "f", FormatText, "出力形式（短縮形）")
	fs.IntVar(&config.Limit, "limit", 0, "出力するイベント数の上限")
	fs.IntVar(&config.Limit, "n", 0, "出力するイベント数の上限（短縮形）")
	fs.BoolVar(&config.ShowTracks, "tracks", false, "トラックごとのイベント数を表示")
	fs.BoolVar(&config.ShowHelp, "help", false, "ヘルプを表示")
	fs.BoolVar(&config.ShowHelp, "h", false, "ヘルプを表示（短縮形）")

	if err := fs.Parse(reorderedArgs); err != nil {
		return nil, err
	}

	// 環境変数からログレベルを取得（コマンドラインフラグが優先）
	if config.LogLevel == "info" {
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			config.LogLevel = strings.ToLower(logLevelEnv)
		}
	}

	// 環境変数から並列数を取得（コマンドラインフラグが優先）
	if workers == unsetWorkers {
		workers = 0
		if workersEnv := os.Getenv("SMFDECODE_WORKERS"); workersEnv != "" {
			w, err := strconv.Atoi(workersEnv)
			if err != nil || w < 0 {
				return nil, fmt.Errorf("invalid SMFDECODE_WORKERS: %q", workersEnv)
			}
			workers = w
		}
	}
	config.Workers = workers

	config.Format = strings.ToLower(config.Format)

	if err := validate(config); err != nil {
		return nil, err
	}

	// 位置引数（MIDIファイルのパス）
	if fs.NArg() > 1 {
		return nil, fmt.Errorf("too many arguments: %v", fs.Args())
	}
	if fs.NArg() == 1 {
		config.FilePath = fs.Arg(0)
	}

	if config.FilePath == "" && !config.ShowHelp {
		return nil, fmt.Errorf("missing MIDI file argument")
	}

	return config, nil
}

func validate(config *Config) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[config.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}

	if config.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", config.Workers)
	}

	if config.Format != FormatText && config.Format != FormatJSON {
		return fmt.Errorf("invalid format: %s (must be text or json)", config.Format)
	}

	if config.Limit < 0 {
		return fmt.Errorf("limit must be non-negative, got %d", config.Limit)
	}

	return nil
}

// reorderArgs 引数を並べ替えて、フラグを前に、位置引数を後ろに配置する
func reorderArgs(args []string) []string {
	var flags []string
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// "--" 以降はすべて位置引数
		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}

		// フラグかどうかを判定（-または--で始まる）
		if len(arg) > 1 && arg[0] == '-' {
			flags = append(flags, arg)

			// -n=10 のように値を含む場合や、ブール型フラグは次の引数を取らない
			if strings.Contains(arg, "=") || boolFlags[arg] {
				continue
			}
			// （-n 10 のような場合）次の引数を値として扱う
			if i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			// 位置引数
			positional = append(positional, arg)
		}
	}

	// フラグを前に、位置引数を後ろに配置
	return append(append(flags, "--"), positional...)
}

// PrintHelp ヘルプメッセージを表示
func PrintHelp(w io.Writer) {
	fmt.Fprintf(w, `smfdecode - Standard MIDI File decoder

Usage:
  smfdecode [options] <file.mid>

Arguments:
  file.mid    デコードするMIDIファイルのパス（大文字小文字は区別しない）

Options:
  -l, --log-level <level>     ログレベル: debug, info, warn, error（デフォルト: info）
  -w, --workers <n>           トラックデコードの並列数（デフォルト: CPU数）
  -f, --format <format>       出力形式: text, json（デフォルト: text）
  -n, --limit <n>             出力するイベント数の上限（デフォルト: 無制限）
  --tracks                    トラックごとのイベント数を表示
  -h, --help                  このヘルプを表示

Environment Variables:
  LOG_LEVEL=<level>           ログレベル
  SMFDECODE_WORKERS=<n>       トラックデコードの並列数

Examples:
  smfdecode song.mid                   イベント一覧を表示
  smfdecode -n 20 --tracks SONG.MID    先頭20イベントとトラック別の集計
  smfdecode --format json song.mid     JSONで出力
  LOG_LEVEL=debug smfdecode song.mid   デバッグログを有効化
`)
}
