package main

import (
	"embed"
	"fmt"
	"os"

	"github.com/zurustar/midiplay/pkg/app"
)

// Built-in SoundFonts: soundfonts/<name>.sf2. Files dropped into the
// directory before building are selectable with --sound <name>.
//
//go:embed soundfonts
var embeddedSoundFonts embed.FS

func main() {
	application := app.New(embeddedSoundFonts)
	if err := application.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
