// Package soundfont scans mounted filesystems for SoundFont2 files and
// catalogues them for the SoundFont synth adapter, grounded on
// mt32-pi's CSoundFontManager
// (original_source/include/soundfontmanager.h,
// src/soundfontmanager.cpp). A SoundFont file is recognised purely
// from its RIFF/sfbk chunk structure, never its extension.
package soundfont

import (
	"bytes"
	"encoding/binary"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	maxDisplayNameLength = 256
	root                 = "soundfonts"
)

// Entry is one catalogued SoundFont file.
type Entry struct {
	Path        string
	DisplayName string
}

// FxProfile is a per-soundfont effects override (§ DATA MODEL). A nil
// pointer field means "use synthesizer default."
type FxProfile struct {
	Gain *float64 `yaml:"gain,omitempty"`

	ReverbOn      *bool    `yaml:"reverb_on,omitempty"`
	ReverbDamping *float64 `yaml:"reverb_damping,omitempty"`
	ReverbLevel   *float64 `yaml:"reverb_level,omitempty"`
	ReverbRoom    *float64 `yaml:"reverb_room,omitempty"`
	ReverbWidth   *float64 `yaml:"reverb_width,omitempty"`

	ChorusOn     *bool    `yaml:"chorus_on,omitempty"`
	ChorusDepth  *float64 `yaml:"chorus_depth,omitempty"`
	ChorusLevel  *float64 `yaml:"chorus_level,omitempty"`
	ChorusVoices *int     `yaml:"chorus_voices,omitempty"`
	ChorusSpeed  *float64 `yaml:"chorus_speed,omitempty"`
}

// Manager catalogues SoundFont files found across one or more mounted
// filesystems, bounded to 512 entries (§ glossary "bounded by 256" for
// names; the 512-entry cap on the list is this package's own).
type Manager struct {
	entries []Entry
}

// MaxEntries is the catalogue size cap.
const MaxEntries = 512

// New returns an empty Manager.
func New() *Manager {
	return &Manager{}
}

// Scan walks "soundfonts/" under every mount, accepting any file whose
// header parses as a RIFF/sfbk container, and sorts the catalogue by
// path, case-insensitively. The result is capped at MaxEntries; excess
// files are dropped from the tail of the sorted scan order.
func (m *Manager) Scan(mounts []fs.FS) error {
	var entries []Entry

	for _, mount := range mounts {
		found, err := scanMount(mount)
		if err != nil {
			return err
		}

		entries = append(entries, found...)
	}

	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Path) < strings.ToLower(entries[j].Path)
	})

	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}

	m.entries = entries

	return nil
}

func scanMount(mount fs.FS) ([]Entry, error) {
	dirEntries, err := fs.ReadDir(mount, root)
	if err != nil {
		if isNotExist(err) {
			return nil, nil
		}

		return nil, err
	}

	var out []Entry

	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}

		p := path.Join(root, de.Name())

		data, err := fs.ReadFile(mount, p)
		if err != nil {
			continue
		}

		name, ok := sniff(data)
		if !ok {
			continue
		}

		if name == "" {
			name = de.Name()
		}

		out = append(out, Entry{Path: p, DisplayName: name})
	}

	return out, nil
}

func isNotExist(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "no such file") ||
		strings.Contains(err.Error(), "file does not exist"))
}

// sniff validates the RIFF/sfbk/LIST/INFO chunk skeleton and extracts
// the INAM display name if present. ok is false for anything that
// isn't a recognisable SoundFont2 file.
func sniff(data []byte) (displayName string, ok bool) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "sfbk" {
		return "", false
	}

	pos := 12
	foundInfo := false

	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8

		if chunkID == "LIST" {
			if body+4 > len(data) {
				break
			}

			listType := string(data[body : body+4])
			if listType == "INFO" {
				foundInfo = true

				if name, found := findINAM(data[body+4 : min(len(data), body+chunkSize)]); found {
					return name, true
				}
			}
		}

		pos = body + chunkSize
		if chunkSize%2 == 1 {
			pos++ // RIFF chunks pad to even length
		}
	}

	return "", foundInfo
}

func findINAM(infoBody []byte) (string, bool) {
	pos := 0

	for pos+8 <= len(infoBody) {
		subID := string(infoBody[pos : pos+4])
		subSize := int(binary.LittleEndian.Uint32(infoBody[pos+4 : pos+8]))
		start := pos + 8
		end := start + subSize

		if end > len(infoBody) {
			break
		}

		if subID == "INAM" {
			name := bytes.TrimRight(infoBody[start:end], "\x00")
			if len(name) > maxDisplayNameLength {
				name = name[:maxDisplayNameLength]
			}

			return string(name), true
		}

		pos = end
		if subSize%2 == 1 {
			pos++
		}
	}

	return "", false
}

// Entries returns the catalogued list in sorted order.
func (m *Manager) Entries() []Entry {
	return m.entries
}

// LoadProfile reads and parses the FxProfile sitting alongside
// entryPath (same basename, .cfg suffix). A missing file is not an
// error; it yields a zero-value (all-default) profile.
func LoadProfile(mount fs.FS, entryPath string) (FxProfile, error) {
	cfgPath := strings.TrimSuffix(entryPath, path.Ext(entryPath)) + ".cfg"

	data, err := fs.ReadFile(mount, cfgPath)
	if err != nil {
		if isNotExist(err) {
			return FxProfile{}, nil
		}

		return FxProfile{}, err
	}

	var profile FxProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return FxProfile{}, err
	}

	return profile, nil
}
