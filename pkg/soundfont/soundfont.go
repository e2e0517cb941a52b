// Package soundfont resolves the SoundFont used for playback: a built-in
// selected by name from the embedded directory, or an external .sf2 file.
package soundfont

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/zurustar/midiplay/pkg/fileutil"
	"github.com/zurustar/midiplay/pkg/render"
)

var (
	// ErrBuiltInSound is returned when a built-in SoundFont name is unknown or its data is missing.
	ErrBuiltInSound = errors.New("built-in sound not available")
	// ErrReadSoundFont is returned when a SoundFont file cannot be read.
	ErrReadSoundFont = errors.New("failed to read SoundFont")
	// ErrParseSoundFont is returned when SoundFont bytes are rejected by the synthesizer.
	ErrParseSoundFont = render.ErrParseSoundFont
)

const (
	// DefaultName selects the default built-in sound.
	DefaultName = "default"
	// defaultBuiltIn is the built-in that DefaultName refers to.
	defaultBuiltIn = "piano"
	// Ext is the file extension of built-in SoundFonts.
	Ext = ".sf2"
	// ExternalDefaultName is looked up in the current directory when the
	// default built-in is not embedded in the binary.
	ExternalDefaultName = "GeneralUser-GS.sf2"
)

// SoundFont is a named SoundFont image.
type SoundFont struct {
	Name string
	Data []byte
	// Embedded reports whether Data came from the binary.
	Embedded bool
}

// List returns the names of the built-in SoundFonts in builtins, sorted.
// DefaultName is not included; it is an alias.
func List(builtins fileutil.FileSystem) ([]string, error) {
	if builtins == nil {
		return nil, nil
	}
	entries, err := builtins.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBuiltInSound, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := path.Ext(entry.Name())
		if !strings.EqualFold(ext, Ext) {
			continue
		}
		names = append(names, strings.ToLower(strings.TrimSuffix(entry.Name(), ext)))
	}
	sort.Strings(names)
	return names, nil
}

// FromName returns the built-in SoundFont called name. DefaultName resolves
// to the piano; when that is not embedded, ExternalDefaultName in the current
// directory is used instead.
func FromName(builtins fileutil.FileSystem, name string) (*SoundFont, error) {
	lookup := strings.ToLower(name)
	if lookup == DefaultName || lookup == "" {
		lookup = defaultBuiltIn
	}

	if builtins != nil {
		data, err := builtins.ReadFile(lookup + Ext)
		if err == nil && len(data) > 0 {
			return &SoundFont{Name: lookup, Data: data, Embedded: builtins.IsEmbedded()}, nil
		}
	}

	if lookup == defaultBuiltIn {
		if data, err := fileutil.NewRealFS("").ReadFile(ExternalDefaultName); err == nil && len(data) > 0 {
			return &SoundFont{Name: ExternalDefaultName, Data: data}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrBuiltInSound, name)
}

// FromFile reads the SoundFont at p and checks that the synthesizer accepts it.
// A nil fsys resolves p against the working directory.
func FromFile(fsys fileutil.FileSystem, p string) (*SoundFont, error) {
	if fsys == nil {
		fsys = fileutil.NewRealFS("")
	}
	data, err := fsys.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", ErrReadSoundFont, p)
		}
		return nil, fmt.Errorf("%w: %v", ErrReadSoundFont, err)
	}

	if _, err := render.LoadSoundFont(data); err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return &SoundFont{
		Name:     path.Base(strings.ReplaceAll(p, "\\", "/")),
		Data:     data,
		Embedded: fsys.IsEmbedded(),
	}, nil
}
