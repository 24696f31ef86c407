// Package config manages persistent preferences for the streamrecv demo
// binary. Settings are stored as JSON at
// os.UserConfigDir()/streamrecv/config.json.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds the demo binary's persistent preferences: where to
// listen, the ring geometry, and the stream.Settings overrides to
// apply at startup.
type Config struct {
	ListenAddr       string `json:"listen_addr"`
	OutputDeviceID   int    `json:"output_device_id"`
	FrameSampleCount int    `json:"frame_sample_count"`
	FrameCapacity    int    `json:"frame_capacity"`
	SampleRate       int    `json:"sample_rate"`
	Channels         int    `json:"channels"`
	UseOpus          bool   `json:"use_opus"`

	DynamicJitterBuffers            bool `json:"dynamic_jitter_buffers"`
	StaticDesiredJitterBufferFrames int  `json:"static_desired_jitter_buffer_frames"`
	UseStdDev                       bool `json:"use_std_dev"`
	MaxFramesOverDesired            int  `json:"max_frames_over_desired"`
	WindowStarveThreshold           int  `json:"window_starve_threshold"`
}

// Default returns a Config populated with sensible defaults, matching
// stream.DefaultSettings where the fields overlap.
func Default() Config {
	return Config{
		ListenAddr:                      ":4040",
		OutputDeviceID:                  -1,
		FrameSampleCount:                960,
		FrameCapacity:                   100,
		SampleRate:                      48000,
		Channels:                        1,
		UseOpus:                         true,
		DynamicJitterBuffers:            true,
		StaticDesiredJitterBufferFrames: 1,
		UseStdDev:                       false,
		MaxFramesOverDesired:            10,
		WindowStarveThreshold:           3,
	}
}

// Path returns the absolute path to the config file.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "streamrecv", "config.json"), nil
}

// Load reads the config file and returns it. If the file is missing or
// unreadable, the default config is returned — never an error.
func Load() Config {
	path, err := Path()
	if err != nil {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Default()
	}
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default()
	}
	return cfg
}

// Save writes cfg to disk, creating the directory if needed.
func Save(cfg Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
