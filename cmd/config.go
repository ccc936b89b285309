// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/joylink/internal/docfile"
	"github.com/Thermoquad/joylink/pkg/joycore"
	"github.com/Thermoquad/joylink/pkg/session"
)

var (
	configOutput   string
	configSave     bool
	configWatch    bool
	configDevice   bool
	configForce    bool
	configConfirm  bool
	configFromFile string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read, validate and apply controller configuration over HID",
	Long: `Read, validate and apply the controller configuration through the HID
feature report interface.

Configuration files are read and written as JSON (.json), YAML (.yaml, .yml),
TOML (.toml), CBOR (.cbor) or the raw binary layout (.bin), chosen by the
file extension.`,
}

var configStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration storage status",
	RunE:  runConfigStatus,
}

var configGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Read the active configuration",
	Long: `Read the active configuration and print it, or save it with --output.

Exit codes:
  0 - Configuration read
  1 - Device error or unreadable configuration`,
	RunE: runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <file>",
	Short: "Apply a configuration file",
	Long: `Apply a configuration file to the controller.

The document is checked on the host first and refused when it has errors;
warnings are printed and do not block. Use --save to persist it to
controller storage afterwards, and --watch to apply it again every time the
file changes.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigSet,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a configuration file",
	Long: `Check a configuration file on the host. With --device the controller
validates it as well, without applying it.

Exit codes:
  0 - No errors (warnings allowed)
  1 - Errors found or device rejected the document`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigValidate,
}

var configSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Persist the active configuration to controller storage",
	RunE:  runConfigSave,
}

var configLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Reload the configuration from controller storage",
	RunE:  runConfigLoad,
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the factory default configuration",
	Long: `Restore the factory default configuration on the controller. The stored
configuration is not touched until "joylink config save". Requires --yes.`,
	RunE: runConfigReset,
}

var configDecodeCmd = &cobra.Command{
	Use:   "decode <file>",
	Short: "Decode a binary configuration dump offline",
	Long: `Decode a raw configuration, such as a /config.bin saved with
"joylink storage read --output", and verify its checksum.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigDecode,
}

var configConvertCmd = &cobra.Command{
	Use:   "convert <in> <out>",
	Short: "Convert a configuration file between formats",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigConvert,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(
		configStatusCmd,
		configGetCmd,
		configSetCmd,
		configValidateCmd,
		configSaveCmd,
		configLoadCmd,
		configResetCmd,
		configDecodeCmd,
		configConvertCmd,
	)

	configGetCmd.Flags().StringVarP(&configOutput, "output", "o", "", "Save to this file instead of printing")
	configGetCmd.Flags().StringVar(&configFromFile, "from-storage", "", "Read this stored file over the console instead (e.g. /config.bin)")
	configSetCmd.Flags().BoolVar(&configSave, "save", false, "Persist to controller storage after applying")
	configSetCmd.Flags().BoolVar(&configWatch, "watch", false, "Apply again whenever the file changes")
	configSetCmd.Flags().BoolVar(&configForce, "force", false, "Apply even when host validation finds errors")
	configValidateCmd.Flags().BoolVar(&configDevice, "device", false, "Also ask the controller to validate")
	configResetCmd.Flags().BoolVar(&configConfirm, "yes", false, "Confirm restoring defaults")
}

func runConfigStatus(cmd *cobra.Command, args []string) error {
	s, connInfo, err := OpenSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := commandContext()
	defer cancel()

	status, err := s.GetConfigStatus(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Print(joycore.FormatStatus(status))
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	raw, err := readActiveConfig()
	if err != nil {
		return err
	}

	if configOutput != "" {
		format, err := docfile.FormatFromPath(configOutput)
		if err != nil {
			return err
		}
		if format == docfile.FormatBinary {
			// Keep the device bytes as they are, checksum included
			if err := os.WriteFile(configOutput, raw, 0644); err != nil {
				return err
			}
			fmt.Printf("Saved %d bytes to %s\n", len(raw), configOutput)
			return nil
		}
	}

	codec, err := cfg.NewCodec(joycore.WithLogger(logger))
	if err != nil {
		return err
	}
	doc, err := codec.Decode(raw)
	if err != nil {
		if joycore.IsConfigAbsent(err) {
			return fmt.Errorf("no valid configuration on the device: %w", err)
		}
		return err
	}
	if err := codec.VerifyChecksum(raw); err != nil {
		logger.Warn("configuration checksum", "err", err)
	}

	if configOutput == "" {
		fmt.Print(joycore.FormatDocument(doc))
		return nil
	}
	if err := docfile.WriteFile(configOutput, doc, codec); err != nil {
		return err
	}
	fmt.Printf("Saved to %s\n", configOutput)
	return nil
}

// readActiveConfig reads the configuration over HID, or the stored file
// over the console when --from-storage is given.
func readActiveConfig() ([]byte, error) {
	ctx, cancel := commandContext()
	defer cancel()

	if configFromFile != "" {
		console, _, err := OpenConsole()
		if err != nil {
			return nil, err
		}
		defer console.Close()

		file, err := console.ReadFile(ctx, absoluteName(configFromFile))
		if err != nil {
			return nil, err
		}
		return file.Data, nil
	}

	s, _, err := OpenSession()
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.GetConfigBytes(ctx)
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path := args[0]

	s, connInfo, err := OpenSession(session.WithHostValidation(!configForce))
	if err != nil {
		return err
	}
	defer s.Close()
	fmt.Printf("Connection: %s\n", connInfo)

	if err := applyFile(s, path); err != nil {
		if !configWatch {
			return err
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
	}

	if configWatch {
		return watchFile(path, func() error { return applyFile(s, path) })
	}
	return nil
}

// applyFile validates, applies and optionally saves one configuration file
func applyFile(s *session.Session, path string) error {
	doc, err := docfile.ReadFile(path, s.Codec())
	if err != nil {
		return err
	}

	findings := joycore.Validate(doc)
	if len(findings) > 0 {
		fmt.Print(joycore.FormatValidation(findings))
	}

	ctx, cancel := commandContext()
	defer cancel()

	res, err := s.SetConfig(ctx, doc)
	if err != nil {
		return err
	}
	fmt.Printf("Applied %s (%s)\n", path, res.Status)

	if configSave {
		if _, err := s.SaveConfig(ctx); err != nil {
			return fmt.Errorf("applied but not saved: %w", err)
		}
		fmt.Printf("Saved to controller storage\n")
	}
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	codec, err := cfg.NewCodec(joycore.WithLogger(logger))
	if err != nil {
		return err
	}
	doc, err := docfile.ReadFile(args[0], codec)
	if err != nil {
		return err
	}

	findings := joycore.Validate(doc)
	fmt.Print(joycore.FormatValidation(findings))
	failed := joycore.HasErrors(findings)

	if configDevice {
		s, _, err := OpenSession()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, cancel := commandContext()
		defer cancel()

		res, err := s.ValidateConfig(ctx, doc)
		if res != nil && res.Validation != nil {
			v := res.Validation
			fmt.Printf("Device: valid=%s errors=%d warnings=%d", yesNo(v.Valid), v.ErrorCount, v.WarningCount)
			if v.FirstError != "" {
				fmt.Printf(" first=%q", v.FirstError)
			}
			fmt.Println()
		}
		var pe *joycore.ProtocolError
		switch {
		case errors.As(err, &pe):
			fmt.Printf("Device rejected the document: %v\n", pe)
			failed = true
		case err != nil:
			return err
		case res.Validation == nil:
			fmt.Printf("Device: accepted\n")
		}
	}

	if failed {
		os.Exit(1)
	}
	return nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func runConfigSave(cmd *cobra.Command, args []string) error {
	return runSimpleCommand("Configuration saved", (*session.Session).SaveConfig)
}

func runConfigLoad(cmd *cobra.Command, args []string) error {
	return runSimpleCommand("Configuration reloaded from storage", (*session.Session).LoadConfig)
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	if !configConfirm {
		return errors.New("refusing to restore defaults without --yes")
	}
	return runSimpleCommand("Factory defaults restored", (*session.Session).ResetConfig)
}

func runSimpleCommand(done string, op func(*session.Session, context.Context) (*session.Result, error)) error {
	s, _, err := OpenSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := commandContext()
	defer cancel()

	if _, err := op(s, ctx); err != nil {
		return err
	}
	fmt.Println(done)
	return nil
}

func runConfigDecode(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d bytes\n", args[0], len(raw))
	return printStoredConfig(raw)
}

func runConfigConvert(cmd *cobra.Command, args []string) error {
	codec, err := cfg.NewCodec(joycore.WithLogger(logger))
	if err != nil {
		return err
	}
	doc, err := docfile.ReadFile(args[0], codec)
	if err != nil {
		return err
	}
	if err := docfile.WriteFile(args[1], doc, codec); err != nil {
		return err
	}
	fmt.Printf("Converted %s -> %s\n", args[0], args[1])
	return nil
}
