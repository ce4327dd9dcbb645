package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "htsget-archive [command] (flags)",
	Short: "htsget server for encrypted genomic archives",
	Long:  ``,
}

func main() {
	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(serveCmd, sliceCmd)

	serveCmd.Flags().StringVarP(
		&configPath, "config", "c", "", "JSON configuration file")

	sliceCmd.Flags().StringVarP(
		&sliceFormat, "format", "f", "", "file format (detected from the file name when empty)")
	sliceCmd.Flags().StringVarP(
		&sliceIndex, "index", "i", "", "index file (defaults to the data file name plus the format's index suffix)")
	sliceCmd.Flags().StringVarP(
		&sliceReference, "reference", "r", "", "reference name, or * for unplaced reads")
	sliceCmd.Flags().Int64Var(
		&sliceStart, "start", -1, "0-based inclusive start")
	sliceCmd.Flags().Int64Var(
		&sliceEnd, "end", -1, "0-based exclusive end")
	sliceCmd.Flags().BoolVar(
		&sliceHeader, "header", false, "only the header")
	sliceCmd.Flags().Int64Var(
		&sliceMaxBlockBytes, "max-block-bytes", 0, "split byte ranges longer than this (0 keeps them whole)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
