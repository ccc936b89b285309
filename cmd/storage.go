// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/joylink/pkg/joycore"
)

var (
	storageOutput string
	storageHex    bool
	storageConfirm bool
)

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Inspect the controller's flash storage over the console",
}

var storageInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show storage usage",
	RunE:  runStorageInfo,
}

var storageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List files in storage",
	RunE:  runStorageList,
}

var storageReadCmd = &cobra.Command{
	Use:   "read [name]",
	Short: "Read a file from storage",
	Long: `Read a file from controller storage. The name defaults to /config.bin,
which is decoded and printed as a configuration.

Use --output to save the raw bytes, for example to inspect them later
with "joylink config decode".`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStorageRead,
}

var storageSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save the active configuration to /config.bin",
	RunE:  runStorageSave,
}

var storageDefaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Create and save the firmware default configuration",
	Long: `Make the firmware build its default configuration and save it to
/config.bin, replacing the stored one. Requires --yes.`,
	RunE: runStorageDefaults,
}

var storageFormatCmd = &cobra.Command{
	Use:   "format",
	Short: "Erase controller storage",
	Long: `Erase controller storage, including the saved configuration.

The controller keeps running with its active configuration until the next
reboot. Requires --yes.`,
	RunE: runStorageFormat,
}

func init() {
	rootCmd.AddCommand(storageCmd)
	storageCmd.AddCommand(storageInfoCmd, storageListCmd, storageReadCmd, storageSaveCmd, storageDefaultsCmd, storageFormatCmd)

	storageReadCmd.Flags().StringVarP(&storageOutput, "output", "o", "", "Write the raw file to this path")
	storageReadCmd.Flags().BoolVar(&storageHex, "hex", false, "Print a hex dump instead of decoding")
	storageDefaultsCmd.Flags().BoolVar(&storageConfirm, "yes", false, "Confirm replacing the stored configuration")
	storageFormatCmd.Flags().BoolVar(&storageConfirm, "yes", false, "Confirm erasing storage")
}

func runStorageInfo(cmd *cobra.Command, args []string) error {
	console, _, err := OpenConsole()
	if err != nil {
		return err
	}
	defer console.Close()

	ctx, cancel := commandContext()
	defer cancel()

	info, err := console.StorageInfo(ctx)
	if err != nil {
		return err
	}
	fmt.Print(joycore.FormatStorageInfo(info))

	status, err := console.Status(ctx)
	if err != nil {
		return err
	}
	for _, line := range status {
		fmt.Println(line)
	}
	return nil
}

func runStorageList(cmd *cobra.Command, args []string) error {
	console, _, err := OpenConsole()
	if err != nil {
		return err
	}
	defer console.Close()

	ctx, cancel := commandContext()
	defer cancel()

	names, err := console.ListFiles(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("(no files)")
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func runStorageRead(cmd *cobra.Command, args []string) error {
	name := joycore.ConfigFileName
	if len(args) == 1 {
		name = absoluteName(args[0])
	}

	console, _, err := OpenConsole()
	if err != nil {
		return err
	}
	defer console.Close()

	ctx, cancel := commandContext()
	defer cancel()

	file, err := console.ReadFile(ctx, name)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", file.Name, joycore.FormatBytes(uint64(len(file.Data))))

	if storageOutput != "" {
		if err := os.WriteFile(storageOutput, file.Data, 0644); err != nil {
			return err
		}
		fmt.Printf("Saved to %s\n", storageOutput)
	}

	if storageHex || name != joycore.ConfigFileName {
		fmt.Print(joycore.HexDump(file.Data))
		return nil
	}
	return printStoredConfig(file.Data)
}

// absoluteName makes bare names absolute, as the firmware expects
func absoluteName(name string) string {
	if name != "" && name[0] != '/' {
		return "/" + name
	}
	return name
}

// printStoredConfig decodes a stored configuration and prints it, falling
// back to a hex dump when it is not a configuration.
func printStoredConfig(raw []byte) error {
	codec, err := cfg.NewCodec(joycore.WithLogger(logger))
	if err != nil {
		return err
	}

	doc, err := codec.Decode(raw)
	if err != nil {
		fmt.Printf("Not a decodable configuration: %v\n", err)
		fmt.Print(joycore.HexDump(raw))
		return nil
	}

	fmt.Print(joycore.FormatDocument(doc))
	if err := codec.VerifyChecksum(raw); err != nil {
		var mismatch *joycore.ChecksumMismatchError
		if errors.As(err, &mismatch) {
			fmt.Printf("Checksum: MISMATCH (%v)\n", err)
		} else {
			fmt.Printf("Checksum: %v\n", err)
		}
	} else {
		fmt.Printf("Checksum: OK (%s scope)\n", codec.ChecksumScope())
	}
	return nil
}

func runStorageSave(cmd *cobra.Command, args []string) error {
	console, _, err := OpenConsole()
	if err != nil {
		return err
	}
	defer console.Close()

	ctx, cancel := commandContext()
	defer cancel()

	if err := console.SaveConfig(ctx); err != nil {
		return err
	}
	fmt.Printf("Configuration saved to %s\n", joycore.ConfigFileName)
	return nil
}

func runStorageDefaults(cmd *cobra.Command, args []string) error {
	if !storageConfirm {
		return errors.New("refusing to replace the stored configuration without --yes")
	}

	console, _, err := OpenConsole()
	if err != nil {
		return err
	}
	defer console.Close()

	ctx, cancel := commandContext()
	defer cancel()

	if err := console.ForceDefaults(ctx); err != nil {
		return err
	}
	fmt.Printf("Default configuration created and saved\n")
	return nil
}

func runStorageFormat(cmd *cobra.Command, args []string) error {
	if !storageConfirm {
		return errors.New("refusing to erase storage without --yes")
	}

	console, _, err := OpenConsole()
	if err != nil {
		return err
	}
	defer console.Close()

	ctx, cancel := commandContext()
	defer cancel()

	res, err := console.FormatStorage(ctx)
	if err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("format failed with code %d", res.Code)
	}
	fmt.Printf("Storage formatted\n")
	if res.HasAvailable {
		fmt.Printf("Available: %s\n", joycore.FormatBytes(uint64(res.Available)))
	}
	return nil
}
