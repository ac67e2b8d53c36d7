package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"gopherai-slides/internal/structured"
	"gopherai-slides/internal/textsplit"
)

var (
	splitSize    int
	splitOverlap int
	repairShape  string
)

var splitCmd = &cobra.Command{
	Use:   "split [file]",
	Short: "Split text into overlapping chunks",
	Long:  `Reads the file, or stdin when no file is given, and prints one chunk per block.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSplit,
}

var repairCmd = &cobra.Command{
	Use:   "repair [file]",
	Short: "Parse raw model output into a presentation or image directives",
	Long: `Runs the structured output repair pipeline over the file, or stdin when no
file is given, and prints the recovered JSON.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRepair,
}

func init() {
	splitCmd.Flags().IntVar(&splitSize, "size", textsplit.DefaultChunkSize, "chunk size in characters")
	splitCmd.Flags().IntVar(&splitOverlap, "overlap", textsplit.DefaultOverlap, "overlap between chunks")
	repairCmd.Flags().StringVar(&repairShape, "shape", "presentation", "expected shape: presentation or images")
	rootCmd.AddCommand(splitCmd, repairCmd)
}

func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("read %s failed: %w", args[0], err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin failed: %w", err)
	}
	return string(data), nil
}

func runSplit(cmd *cobra.Command, args []string) error {
	if splitOverlap >= splitSize {
		return fmt.Errorf("overlap (%d) must be smaller than size (%d)", splitOverlap, splitSize)
	}
	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	chunks := textsplit.New(textsplit.WithChunkSize(splitSize), textsplit.WithOverlap(splitOverlap)).Split(text)
	for _, c := range chunks {
		cmd.Printf("[%s] %d-%d\n%s\n\n", c.ID, c.Start, c.End, c.Text)
	}
	cmd.Printf("%d chunks\n", len(chunks))
	return nil
}

func runRepair(cmd *cobra.Command, args []string) error {
	raw, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	var out any
	switch repairShape {
	case "presentation":
		out = structured.ParsePresentation(raw)
	case "images":
		directives, err := structured.ParseImageDirectives(raw)
		if err != nil {
			return err
		}
		out = directives
	default:
		return fmt.Errorf("unknown shape %q", repairShape)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
