package app

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/zurustar/smfdecode/pkg/cli"
	"github.com/zurustar/smfdecode/pkg/fileutil"
	"github.com/zurustar/smfdecode/pkg/logger"
	"github.com/zurustar/smfdecode/pkg/report"
	"github.com/zurustar/smfdecode/pkg/smf"
)

// Application はアプリケーションのメインロジックを管理する
type Application struct {
	config *cli.Config
	log    *slog.Logger
	fsys   fileutil.FileSystem
	out    io.Writer
	logOut io.Writer
	parser *smf.Parser
}

// New Applicationを作成
// fsys は入力ファイルの解決に、out はレポートの出力に使う（ログは標準エラー出力）
func New(fsys fileutil.FileSystem, out io.Writer) *Application {
	return &Application{
		fsys:   fsys,
		out:    out,
		logOut: os.Stderr,
	}
}

// Run アプリケーションを実行
func (app *Application) Run(args []string) error {
	// 1. コマンドライン引数の解析
	if err := app.parseArgs(args); err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}

	if app.config.ShowHelp {
		cli.PrintHelp(app.out)
		return nil
	}

	// 2. ロガーの初期化
	if err := app.initLogger(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.log.Debug("Application started", "file", app.config.FilePath, "workers", app.config.Workers)

	// 3. MIDIファイルの読み込みとデコード
	if err := app.parseFile(); err != nil {
		return fmt.Errorf("failed to decode %s: %w", app.config.FilePath, err)
	}

	// 4. 結果の出力
	opts := report.Options{
		Title:  app.config.FilePath,
		Format: app.config.Format,
		Limit:  app.config.Limit,
		Tracks: app.config.ShowTracks,
	}
	if err := report.Write(app.out, app.parser, opts); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	app.log.Debug("Application terminated normally")
	return nil
}

// parseArgs コマンドライン引数を解析
func (app *Application) parseArgs(args []string) error {
	config, err := cli.ParseArgs(args)
	if err != nil {
		return err
	}
	app.config = config
	return nil
}

// initLogger ロガーを初期化
func (app *Application) initLogger() error {
	if err := logger.InitLoggerWithWriter(app.config.LogLevel, app.logOut); err != nil {
		return err
	}
	app.log = logger.GetLogger()
	return nil
}

// parseFile 入力ファイルを開いてデコードする（ファイル名の大文字小文字は区別しない）
func (app *Application) parseFile() error {
	path := app.config.FilePath
	if !fileutil.IsMIDIFile(path) {
		app.log.Warn("File does not have a MIDI extension", "file", path)
	}

	app.log.Debug("Resolving input", "file", path, "embedded", app.fsys.IsEmbedded())
	f, err := app.fsys.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil {
		app.log.Debug("MIDI file opened", "file", path, "size", info.Size())
	}

	app.parser = smf.NewParser(
		smf.WithLogger(app.log),
		smf.WithWorkers(app.config.Workers),
	)
	return app.parser.Parse(bufio.NewReader(f))
}
