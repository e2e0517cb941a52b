package app

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/zurustar/midiplay/pkg/audiohost"
	"github.com/zurustar/midiplay/pkg/cli"
	"github.com/zurustar/midiplay/pkg/fileutil"
	"github.com/zurustar/midiplay/pkg/logger"
	"github.com/zurustar/midiplay/pkg/midifile"
	"github.com/zurustar/midiplay/pkg/player"
	"github.com/zurustar/midiplay/pkg/render"
	"github.com/zurustar/midiplay/pkg/report"
	"github.com/zurustar/midiplay/pkg/soundfont"
)

// SoundFontDir は埋め込みファイルシステム内の組み込みサウンドフォントのディレクトリ
const SoundFontDir = "soundfonts"

// HostFactory はオーディオホストを作成する
type HostFactory func(backend string, cfg audiohost.Config) (player.Host, error)

// Application はアプリケーションのメインロジックを管理する
type Application struct {
	config   *cli.Config
	log      *slog.Logger
	builtins fileutil.FileSystem
	files    fileutil.FileSystem
	stdout   io.Writer

	newHost    HostFactory
	playerOpts []player.Option
	logOutput  io.Writer
}

// New Applicationを作成
// embedFS は SoundFontDir ディレクトリに組み込みサウンドフォントを含む
func New(embedFS fs.FS) *Application {
	var builtins fileutil.FileSystem
	if embedFS != nil {
		builtins = fileutil.NewEmbedFS(embedFS, SoundFontDir)
	}
	return &Application{
		builtins: builtins,
		files:    fileutil.NewRealFS(""),
		stdout:   os.Stdout,
		newHost:  audiohost.New,
	}
}

// Run アプリケーションを実行
func (app *Application) Run(args []string) error {
	// 1. コマンドライン引数の解析
	if err := app.parseArgs(args); err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}

	if app.config.ShowHelp {
		cli.PrintHelp(app.stdout)
		return nil
	}

	// 2. ロガーの初期化
	if err := app.initLogger(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// 3. 組み込みサウンドフォントの一覧
	if app.config.List {
		return app.listSoundFonts()
	}

	// 4. 入力ファイルの読み込み
	file, err := midifile.ReadFile(app.files, app.config.InputFile)
	if err != nil {
		return err
	}
	app.log.Info("MIDI file loaded",
		"path", app.config.InputFile,
		"format", file.Header.Format,
		"tracks", len(file.Tracks))

	// 5. モデルの検証
	if err := app.checkModel(file); err != nil {
		return err
	}

	// 6. 概要の表示
	if app.config.Inspect {
		if err := app.inspect(file); err != nil {
			return fmt.Errorf("failed to print summary: %w", err)
		}
	}

	// 7. 書き出し
	if app.config.OutputFile != "" {
		if err := midifile.WriteFile(app.config.OutputFile, file); err != nil {
			return err
		}
		app.log.Info("MIDI file written", "path", app.config.OutputFile)
	}

	// 8. WAVファイルへの合成
	if app.config.RenderFile != "" {
		if err := app.renderWAV(file); err != nil {
			return err
		}
	}

	// 9. 再生
	if app.config.Run {
		if err := app.play(file); err != nil {
			return err
		}
	}

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
	if err := logger.Init(logger.Options{
		Level:  app.config.LogLevel,
		Format: app.config.LogFormat,
		Output: app.logOutput,
	}); err != nil {
		return err
	}
	app.log = logger.GetLogger()
	return nil
}

// listSoundFonts 組み込みサウンドフォントの一覧を表示
func (app *Application) listSoundFonts() error {
	names, err := soundfont.List(app.builtins)
	if err != nil {
		return err
	}

	fmt.Fprintln(app.stdout, "Available built-in soundfonts:")
	if len(names) == 0 {
		fmt.Fprintln(app.stdout, "  (none embedded)")
	}
	for _, name := range names {
		fmt.Fprintf(app.stdout, "  - %s\n", name)
	}
	return nil
}

// checkModel モデルを検証する
// 通常は警告のみ。--strict の場合はエラーとして終了する
func (app *Application) checkModel(file *midifile.File) error {
	err := midifile.Validate(file)
	if err == nil {
		return nil
	}
	if app.config.Strict {
		return err
	}
	app.log.Warn("MIDI model has problems, encoding anyway", "error", err)
	return nil
}

// inspect ファイルの概要を標準出力に表示
func (app *Application) inspect(file *midifile.File) error {
	enc, err := report.ParseTextEncoding(app.config.TextEncoding)
	if err != nil {
		return err
	}
	return report.Render(app.stdout, report.Summarize(file), enc)
}

// selectSoundFont 再生に使うサウンドフォントを決める
// 外部ファイルの指定が組み込みより優先される
func (app *Application) selectSoundFont() (*soundfont.SoundFont, error) {
	if app.config.CustomSound != "" {
		return soundfont.FromFile(app.files, app.config.CustomSound)
	}
	return soundfont.FromName(app.builtins, app.config.Sound)
}

// renderWAV サウンドフォントで合成してWAVファイルに書き出す
func (app *Application) renderWAV(file *midifile.File) error {
	sf, err := app.selectSoundFont()
	if err != nil {
		return err
	}

	sampleRate := app.config.SampleRate
	if sampleRate <= 0 {
		sampleRate = audiohost.DefaultSampleRate
	}
	start := time.Now()
	if err := render.WriteWAVFile(app.config.RenderFile, sf.Data, sampleRate, file); err != nil {
		return err
	}
	app.log.Info("WAV file rendered",
		"path", app.config.RenderFile,
		"soundfont", sf.Name,
		"sampleRate", sampleRate,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// play サウンドフォントを読み込んで再生する（再生終了までブロック）
func (app *Application) play(file *midifile.File) error {
	sf, err := app.selectSoundFont()
	if err != nil {
		return err
	}
	app.log.Info("SoundFont selected", "name", sf.Name, "embedded", sf.Embedded, "size", len(sf.Data))

	cfg := audiohost.Config{
		SampleRate: app.config.SampleRate,
		Channels:   app.config.Channels,
	}
	if app.config.Format != "" {
		format, err := player.ParseSampleFormat(app.config.Format)
		if err != nil {
			return err
		}
		cfg.Format = format
	}

	host, err := app.newHost(app.config.Backend, cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", player.ErrAudioPlayback, err)
	}
	app.log.Debug("Audio host created", "backend", app.config.Backend)

	opts := append([]player.Option{
		player.WithHost(host),
		player.WithLogger(app.log),
	}, app.playerOpts...)
	return player.New(file, sf.Data, opts...).Run()
}
