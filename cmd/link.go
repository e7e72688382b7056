package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/kos-tools/klinker/pkg/kolink"
	"github.com/spf13/cobra"
)

var (
	linkEntryPoint string
	linkShared     bool
	linkDebug      bool
)

var (
	colorSuccess = color.New(color.FgGreen, color.Bold)
	colorError   = color.New(color.FgRed, color.Bold)
	colorInfo    = color.New(color.FgCyan)
)

var linkCmd = &cobra.Command{
	Use:   "link INPUT... OUTPUT",
	Short: "Link KerbalObject (.ko) modules into a KerbalSimulation (.ksm) file",
	Long: `Link links one or more KerbalObject (.ko) modules produced by a kOS
assembler or compiler into a single KerbalSimulation (.ksm) load module.

The last positional argument is the output path; every argument before it
is an input module. At least one input is required.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runLink,
}

func init() {
	linkCmd.Flags().StringVarP(&linkEntryPoint, "entry-point", "e", "_start", "name of the function execution should begin at")
	linkCmd.Flags().BoolVarP(&linkShared, "shared", "s", false, "link a shared library instead of an executable (only _init is required)")
	linkCmd.Flags().BoolVarP(&linkDebug, "debug", "d", false, "print extra diagnostic information about the link")
}

func runLink(cmd *cobra.Command, args []string) error {
	inputPaths := args[:len(args)-1]
	outputPath := args[len(args)-1]
	if ext := filepath.Ext(outputPath); !strings.EqualFold(ext, ".ksm") {
		outputPath += ".ksm"
	}

	if linkDebug {
		log.Debugf("linking %d input modules into %s", len(inputPaths), outputPath)
	}

	driver := kolink.NewDriver(kolink.Config{
		EntryPoint: linkEntryPoint,
		Shared:     linkShared,
		Log:        log,
	})

	for _, path := range inputPaths {
		if err := driver.AddFile(path); err != nil {
			colorError.Fprintf(os.Stderr, "error: %v\n", err)
			return err
		}
	}

	file, err := driver.Link(context.Background())
	if err != nil {
		colorError.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}

	out, err := os.Create(outputPath)
	if err != nil {
		colorError.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	defer out.Close()

	if err := file.WriteGzip(out); err != nil {
		colorError.Fprintf(os.Stderr, "error: writing %s: %v\n", outputPath, err)
		return err
	}

	colorInfo.Fprintf(os.Stderr, "linked %d modules\n", len(inputPaths))
	colorSuccess.Fprintf(os.Stderr, "wrote %s\n", outputPath)
	fmt.Fprintln(cmd.OutOrStdout(), outputPath)
	return nil
}
