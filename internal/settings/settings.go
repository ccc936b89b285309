// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package settings holds joylink's persistent TOML settings.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/Thermoquad/joylink/pkg/joycore"
	"github.com/Thermoquad/joylink/pkg/transport"
)

// Settings is the whole settings file.
type Settings struct {
	Device DeviceSettings `toml:"device"`
	Serial SerialSettings `toml:"serial"`
	Bridge BridgeSettings `toml:"bridge"`
	Timing TimingSettings `toml:"timing"`
	Codec  CodecSettings  `toml:"codec"`
}

// DeviceSettings identifies the HID configuration interface.
type DeviceSettings struct {
	VendorID  uint16 `toml:"vendor_id"`
	ProductID uint16 `toml:"product_id"`
	ReportID  uint8  `toml:"report_id"`
	HIDPath   string `toml:"hid_path"`
}

// SerialSettings selects the console port.
type SerialSettings struct {
	Port string `toml:"port"`
	Baud int    `toml:"baud"`
}

// BridgeSettings selects a WebSocket console bridge.
type BridgeSettings struct {
	URL         string `toml:"url"`
	Username    string `toml:"username"`
	NoSSLVerify bool   `toml:"no_ssl_verify"`
}

// TimingSettings bounds device exchanges.
type TimingSettings struct {
	SettleDelay time.Duration `toml:"settle_delay"`
	ReadTimeout time.Duration `toml:"read_timeout"`
	IdleTimeout time.Duration `toml:"idle_timeout"`
	Retries     int           `toml:"retries"`
}

// CodecSettings selects the binary layout revision.
type CodecSettings struct {
	Profile       string `toml:"profile"`
	AxisLayout    string `toml:"axis_layout"`
	ChecksumScope string `toml:"checksum_scope"`
}

// Default returns the built-in settings.
func Default() *Settings {
	return &Settings{
		Device: DeviceSettings{
			VendorID:  joycore.DefaultVendorID,
			ProductID: joycore.DefaultProductID,
			ReportID:  joycore.ReportID,
		},
		Serial: SerialSettings{
			Baud: transport.DefaultBaudRate,
		},
		Timing: TimingSettings{
			SettleDelay: transport.DefaultSettleDelay,
			ReadTimeout: transport.DefaultReadTimeout,
			IdleTimeout: transport.DefaultIdleTimeout,
			Retries:     1,
		},
		Codec: CodecSettings{
			Profile: joycore.ProfileHost.String(),
		},
	}
}

// DefaultPath returns the settings file location under the user config
// directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "joylink", "config.toml"), nil
}

// Load reads the settings file, writing the defaults first when it does
// not exist yet.
func Load(path string) (*Settings, error) {
	s := Default()

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := Save(path, s); err != nil {
			return s, err
		}
		return s, nil
	}

	md, err := toml.DecodeFile(path, s)
	if err != nil {
		return s, fmt.Errorf("%s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return s, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Save writes s as TOML, creating the parent directory.
func Save(path string, s *Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(s)
}

// Validate checks value ranges and names.
func (s *Settings) Validate() error {
	if s.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud must be positive, got %d", s.Serial.Baud)
	}
	if s.Timing.ReadTimeout <= 0 {
		return fmt.Errorf("timing.read_timeout must be positive, got %s", s.Timing.ReadTimeout)
	}
	if s.Timing.SettleDelay < 0 || s.Timing.IdleTimeout <= 0 {
		return errors.New("timing.settle_delay and timing.idle_timeout must not be negative or zero")
	}
	if s.Timing.Retries < 0 {
		return fmt.Errorf("timing.retries must not be negative, got %d", s.Timing.Retries)
	}
	_, err := s.CodecOptions()
	return err
}

// CodecOptions translates the codec section into codec options. Explicit
// layout and scope entries override the profile.
func (s *Settings) CodecOptions() ([]joycore.Option, error) {
	var opts []joycore.Option
	if s.Codec.Profile != "" {
		p, err := joycore.ParseProfile(s.Codec.Profile)
		if err != nil {
			return nil, fmt.Errorf("codec.profile: %w", err)
		}
		opts = append(opts, joycore.WithProfile(p))
	}
	if s.Codec.AxisLayout != "" {
		l, err := joycore.ParseAxisLayout(s.Codec.AxisLayout)
		if err != nil {
			return nil, fmt.Errorf("codec.axis_layout: %w", err)
		}
		opts = append(opts, joycore.WithAxisLayout(l))
	}
	if s.Codec.ChecksumScope != "" {
		sc, err := joycore.ParseChecksumScope(s.Codec.ChecksumScope)
		if err != nil {
			return nil, fmt.Errorf("codec.checksum_scope: %w", err)
		}
		opts = append(opts, joycore.WithChecksumScope(sc))
	}
	return opts, nil
}

// NewCodec builds a codec from the codec section.
func (s *Settings) NewCodec(extra ...joycore.Option) (*joycore.Codec, error) {
	opts, err := s.CodecOptions()
	if err != nil {
		return nil, err
	}
	return joycore.NewCodec(append(opts, extra...)...), nil
}
