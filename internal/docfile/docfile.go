// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package docfile reads and writes configuration documents as JSON, YAML,
// TOML, CBOR or the raw binary layout.
package docfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/joylink/pkg/joycore"
)

// Format is a document file encoding.
type Format int

const (
	FormatBinary Format = iota
	FormatJSON
	FormatYAML
	FormatTOML
	FormatCBOR
)

func (f Format) String() string {
	switch f {
	case FormatBinary:
		return "bin"
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	case FormatTOML:
		return "toml"
	case FormatCBOR:
		return "cbor"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat accepts a format name or file extension.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "bin", "binary", "raw":
		return FormatBinary, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	case "cbor":
		return FormatCBOR, nil
	}
	return 0, fmt.Errorf("unknown document format %q", name)
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return 0, fmt.Errorf("%s: no file extension to infer a format from", path)
	}
	return ParseFormat(ext)
}

// Marshal encodes doc. The codec is used only for FormatBinary.
func Marshal(doc *joycore.Document, format Format, codec *joycore.Codec) ([]byte, error) {
	if format == FormatBinary {
		return codec.Encode(doc)
	}

	f := FromDocument(doc)
	switch format {
	case FormatJSON:
		out, err := json.MarshalIndent(f, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	case FormatYAML:
		return yaml.Marshal(f)
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(f); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatCBOR:
		return cbor.Marshal(f)
	}
	return nil, fmt.Errorf("unsupported format %s", format)
}

// Unmarshal decodes data. The codec is used only for FormatBinary.
func Unmarshal(data []byte, format Format, codec *joycore.Codec) (*joycore.Document, error) {
	if format == FormatBinary {
		return codec.Decode(data)
	}

	var f File
	var err error
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&f)
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&f)
	case FormatTOML:
		var md toml.MetaData
		md, err = toml.Decode(string(data), &f)
		if err == nil {
			if undecoded := md.Undecoded(); len(undecoded) > 0 {
				err = fmt.Errorf("unknown key %q", undecoded[0].String())
			}
		}
	case FormatCBOR:
		err = cbor.Unmarshal(data, &f)
	default:
		return nil, fmt.Errorf("unsupported format %s", format)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s document: %w", format, err)
	}
	return f.Document()
}

// ReadFile loads a document, inferring the format from the extension.
func ReadFile(path string, codec *joycore.Codec) (*joycore.Document, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Unmarshal(data, format, codec)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// WriteFile stores a document, inferring the format from the extension.
func WriteFile(path string, doc *joycore.Document, codec *joycore.Codec) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	data, err := Marshal(doc, format, codec)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return os.WriteFile(path, data, 0644)
}
