// Package config defines the appliance's configuration tree (§6:
// System, Audio, MIDI, LA, SoundFont, LCD, Control, Network) along with
// sane defaults and a pluggable Loader. The on-disk format itself is
// out of scope (§1); YAMLLoader is a stand-in for the real INI parser
// that scope excludes, not a reimplementation of it.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// System holds host-level settings that don't belong to any one
// subsystem below.
type System struct {
	DefaultSynth   string `yaml:"default_synth"`
	ReversedStereo bool   `yaml:"reversed_stereo"`
}

// Audio mirrors the sink's device selection and buffering knobs.
type Audio struct {
	Device      string `yaml:"device"`
	SampleRate  int    `yaml:"sample_rate"`
	ChunkFrames int    `yaml:"chunk_frames"`
}

// MIDI configures the ingest fan-in sources (§4.M).
type MIDI struct {
	UARTDevice    string `yaml:"uart_device"`
	UARTBaud      int    `yaml:"uart_baud"`
	UARTLogging   bool   `yaml:"uart_used_for_logging"`
	NetworkEnable bool   `yaml:"network_enable"`
}

// LA configures the mt32 adapter's ROM directory and default set.
type LA struct {
	RomDir     string `yaml:"rom_dir"`
	DefaultSet int    `yaml:"default_rom_set"`
}

// SoundFont configures the soundfont adapter's scan directory.
type SoundFont struct {
	Dir          string `yaml:"dir"`
	DefaultIndex int    `yaml:"default_index"`
}

// LCD selects the display backend and its geometry.
type LCD struct {
	Type  string `yaml:"type"`
	Width int    `yaml:"width"`
	Rows  int    `yaml:"rows"`
}

// Control configures GPIO button/encoder lines (§4.E ingestion).
type Control struct {
	Enabled     bool  `yaml:"enabled"`
	ButtonLines []int `yaml:"button_lines"`
	EncoderA    int   `yaml:"encoder_a"`
	EncoderB    int   `yaml:"encoder_b"`
}

// Network configures the AppleMIDI participant and mDNS announce.
type Network struct {
	AppleMidiEnable bool   `yaml:"applemidi_enable"`
	SessionName     string `yaml:"session_name"`
	ControlPort     int    `yaml:"control_port"`
}

// Config is the full tree a Loader produces.
type Config struct {
	System    System    `yaml:"system"`
	Audio     Audio     `yaml:"audio"`
	MIDI      MIDI      `yaml:"midi"`
	LA        LA        `yaml:"la"`
	SoundFont SoundFont `yaml:"soundfont"`
	LCD       LCD       `yaml:"lcd"`
	Control   Control   `yaml:"control"`
	Network   Network   `yaml:"network"`
}

// Default returns the configuration used when no file is present or a
// field is left unset by the loader.
func Default() Config {
	return Config{
		System: System{DefaultSynth: "mt32"},
		Audio: Audio{
			Device:      "default",
			SampleRate:  48000,
			ChunkFrames: 256,
		},
		MIDI: MIDI{
			UARTDevice: "/dev/ttyAMA0",
			UARTBaud:   31250,
		},
		LA: LA{RomDir: "/soundfonts/mt32-rom", DefaultSet: 0},
		SoundFont: SoundFont{
			Dir:          "/soundfonts",
			DefaultIndex: 0,
		},
		LCD:     LCD{Type: "character", Width: 16, Rows: 2},
		Control: Control{Enabled: true, EncoderA: -1, EncoderB: -1},
		Network: Network{SessionName: "sbcsynth"},
	}
}

// Loader produces a Config from whatever backing store it wraps.
type Loader interface {
	Load() (Config, error)
}

// YAMLLoader reads a YAML file over the default tree, so an absent or
// partial file still yields workable values.
type YAMLLoader struct {
	Path string
}

func (l YAMLLoader) Load() (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(l.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}

		return cfg, fmt.Errorf("config: read %s: %w", l.Path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", l.Path, err)
	}

	return cfg, nil
}
