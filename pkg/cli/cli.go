package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// デフォルト値
const (
	DefaultSound        = "default"
	DefaultBackend      = "ebiten"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultTextEncoding = "utf-8"
)

// ErrNoInput は入力ファイルが指定されていない場合のエラー
var ErrNoInput = errors.New("no input MIDI file given")

// Config はコマンドライン引数から解析された設定を保持する
type Config struct {
	InputFile    string // 入力MIDIファイル
	OutputFile   string // 出力MIDIファイル（空なら書き出さない）
	RenderFile   string // オフライン合成したWAVファイル（空なら合成しない）
	Run          bool   // 再生する
	Sound        string // 組み込みサウンドフォント名
	CustomSound  string // 外部SF2ファイルのパス
	List         bool   // 組み込みサウンドフォント一覧を表示
	Inspect      bool   // MIDIファイルの概要を表示
	TextEncoding string // テキストメタイベントの文字コード（utf-8, shift-jis, latin1）
	Backend      string // オーディオバックエンド（ebiten, oto）
	SampleRate   int    // 出力サンプルレート（0はデフォルト）
	Channels     int    // 出力チャンネル数（0はデフォルト）
	Format       string // 出力サンプル形式（f32, i16。空はデフォルト）
	LogLevel     string // ログレベル（debug, info, warn, error）
	LogFormat    string // ログ形式（text, json）
	Strict       bool   // 検証エラーを致命的エラーとして扱う
	ShowHelp     bool   // ヘルプ表示フラグ
}

// boolFlags は値を取らないフラグ（reorderArgsで次の引数を値として扱わない）
var boolFlags = map[string]bool{
	"-r": true, "--run": true, "-run": true,
	"--list": true, "-list": true,
	"--inspect": true, "-inspect": true,
	"--strict": true, "-strict": true,
	"-h": true, "--help": true, "-help": true,
}

var (
	validBackends     = []string{"ebiten", "oto"}
	validLogLevels    = []string{"debug", "info", "warn", "error"}
	validLogFormats   = []string{"text", "json"}
	validFormats      = []string{"f32", "i16"}
	validEncodingKeys = []string{"utf-8", "utf8", "shift-jis", "shift_jis", "sjis", "latin1", "latin-1", "iso-8859-1"}
)

// ParseArgs コマンドライン引数を解析してConfigを返す
func ParseArgs(args []string) (*Config, error) {
	// 引数を並べ替え：フラグを前に、位置引数を後ろに
	reorderedArgs := reorderArgs(args)

	fs := flag.NewFlagSet("midiplay", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	config := &Config{}

	fs.StringVar(&config.InputFile, "file", "", "入力MIDIファイル")
	fs.StringVar(&config.InputFile, "f", "", "入力MIDIファイル（短縮形）")
	fs.StringVar(&config.OutputFile, "output", "", "出力MIDIファイル")
	fs.StringVar(&config.OutputFile, "o", "", "出力MIDIファイル（短縮形）")
	fs.StringVar(&config.RenderFile, "render", "", "WAVファイルに合成して書き出す")
	fs.BoolVar(&config.Run, "run", false, "再生する")
	fs.BoolVar(&config.Run, "r", false, "再生する（短縮形）")
	fs.StringVar(&config.Sound, "sound", DefaultSound, "組み込みサウンドフォント名")
	fs.StringVar(&config.Sound, "s", DefaultSound, "組み込みサウンドフォント名（短縮形）")
	fs.StringVar(&config.CustomSound, "custom-sound", "", "外部SF2ファイル（--runを含む）")
	fs.StringVar(&config.CustomSound, "c", "", "外部SF2ファイル（短縮形）")
	fs.BoolVar(&config.List, "list", false, "組み込みサウンドフォント一覧")
	fs.BoolVar(&config.Inspect, "inspect", false, "MIDIファイルの概要を表示")
	fs.StringVar(&config.TextEncoding, "text-encoding", DefaultTextEncoding, "テキストの文字コード")
	fs.StringVar(&config.Backend, "backend", "", "オーディオバックエンド（ebiten, oto）")
	fs.IntVar(&config.SampleRate, "sample-rate", 0, "出力サンプルレート")
	fs.IntVar(&config.Channels, "channels", 0, "出力チャンネル数")
	fs.StringVar(&config.Format, "format", "", "出力サンプル形式（f32, i16）")
	fs.StringVar(&config.LogLevel, "log-level", DefaultLogLevel, "ログレベル（debug, info, warn, error）")
	fs.StringVar(&config.LogLevel, "l", DefaultLogLevel, "ログレベル（短縮形）")
	fs.StringVar(&config.LogFormat, "log-format", DefaultLogFormat, "ログ形式（text, json）")
	fs.BoolVar(&config.Strict, "strict", false, "検証エラーで終了する")
	fs.BoolVar(&config.ShowHelp, "help", false, "ヘルプを表示")
	fs.BoolVar(&config.ShowHelp, "h", false, "ヘルプを表示（短縮形）")

	if err := fs.Parse(reorderedArgs); err != nil {
		return nil, err
	}

	// 外部サウンドフォントの指定は再生を含む
	if config.CustomSound != "" {
		config.Run = true
	}

	// 明示的に指定されたフラグ
	given := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { given[f.Name] = true })

	// 環境変数からの設定（コマンドラインフラグが優先）
	if !given["l"] && !given["log-level"] {
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			config.LogLevel = strings.ToLower(logLevelEnv)
		}
	}
	if config.Backend == "" {
		config.Backend = strings.ToLower(os.Getenv("MIDIPLAY_BACKEND"))
	}
	if config.Backend == "" {
		config.Backend = DefaultBackend
	}
	// 環境変数のサウンドフォントは再生を暗黙に有効にしない
	if config.CustomSound == "" && !given["s"] && !given["sound"] {
		config.CustomSound = os.Getenv("MIDIPLAY_SOUNDFONT")
	}

	// 位置引数（入力MIDIファイル）
	if fs.NArg() > 0 {
		if config.InputFile != "" {
			return nil, fmt.Errorf("input file given twice: %s and %s", config.InputFile, fs.Arg(0))
		}
		config.InputFile = fs.Arg(0)
	}
	if fs.NArg() > 1 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args()[1:], " "))
	}

	if config.ShowHelp {
		return config, nil
	}
	if err := validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

func validate(config *Config) error {
	if !contains(validLogLevels, config.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}
	if !contains(validLogFormats, config.LogFormat) {
		return fmt.Errorf("invalid log format: %s (must be text or json)", config.LogFormat)
	}
	if !contains(validBackends, config.Backend) {
		return fmt.Errorf("invalid backend: %s (must be ebiten or oto)", config.Backend)
	}
	if config.Format != "" && !contains(validFormats, config.Format) {
		return fmt.Errorf("invalid sample format: %s (must be f32 or i16)", config.Format)
	}
	if !contains(validEncodingKeys, strings.ToLower(config.TextEncoding)) {
		return fmt.Errorf("invalid text encoding: %s (must be utf-8, shift-jis, or latin1)", config.TextEncoding)
	}
	if config.SampleRate < 0 {
		return fmt.Errorf("sample rate must be non-negative, got %d", config.SampleRate)
	}
	if config.Channels < 0 {
		return fmt.Errorf("channels must be non-negative, got %d", config.Channels)
	}

	// --list だけなら入力ファイルは不要
	if config.InputFile == "" && !config.List {
		return ErrNoInput
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
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

			// --name=value 形式とブール型フラグは次の引数を消費しない
			if strings.Contains(arg, "=") || boolFlags[arg] {
				continue
			}
			if i+1 < len(args) && len(args[i+1]) > 0 && args[i+1][0] != '-' {
				i++
				flags = append(flags, args[i])
			}
		} else {
			// 位置引数
			positional = append(positional, arg)
		}
	}

	// フラグを前に、位置引数を "--" の後ろに配置
	if len(positional) == 0 {
		return flags
	}
	return append(append(flags, "--"), positional...)
}

// PrintHelp ヘルプメッセージを表示
func PrintHelp(w io.Writer) {
	fmt.Fprint(w, `midiplay - MIDI file writer and SoundFont player

Usage:
  midiplay [options] <input.mid>
  midiplay --list

Arguments:
  input.mid     入力MIDIファイル（-f/--file でも指定可）

Options:
  -f, --file <path>           入力MIDIファイル
  -o, --output <path>         MIDIファイルを書き出す
  -r, --run                   サウンドフォントで再生する
  --render <path.wav>         サウンドフォントで合成してWAVファイルに書き出す
  -s, --sound <name>          組み込みサウンドフォント（デフォルト: default = piano）
  -c, --custom-sound <path>   外部SF2ファイルで再生する（--runを含む）
  --list                      組み込みサウンドフォントの一覧を表示
  --inspect                   MIDIファイルの概要を表示
  --text-encoding <name>      トラック名の文字コード: utf-8, shift-jis, latin1（デフォルト: utf-8）
  --backend <name>            オーディオバックエンド: ebiten, oto（デフォルト: ebiten）
  --sample-rate <hz>          出力サンプルレート（デフォルト: 44100）
  --channels <n>              出力チャンネル数（デフォルト: 2）
  --format <name>             出力サンプル形式: f32, i16（デフォルト: f32）
  -l, --log-level <level>     ログレベル: debug, info, warn, error（デフォルト: info）
  --log-format <name>         ログ形式: text, json（デフォルト: text）
  --strict                    MIDIモデルの検証エラーで終了する
  -h, --help                  このヘルプを表示

Environment Variables:
  LOG_LEVEL=<level>           ログレベル
  MIDIPLAY_BACKEND=<name>     オーディオバックエンド
  MIDIPLAY_SOUNDFONT=<path>   外部SF2ファイル（再生は --run で有効化、--sound 指定時は無視）

Examples:
  midiplay song.mid --inspect                 概要を表示
  midiplay song.mid -o copy.mid               書き出し
  midiplay song.mid -r                        組み込みピアノで再生
  midiplay song.mid --render song.wav         WAVファイルに合成
  midiplay song.mid -c GeneralUser-GS.sf2     外部サウンドフォントで再生
  midiplay song.mid -r --backend oto --channels 1 --format i16
`)
}
