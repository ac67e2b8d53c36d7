package main

import (
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"gopherai-slides/internal/app"
	"gopherai-slides/internal/model"
	"gopherai-slides/internal/source"
)

var (
	generatePrompt string
	generateURLs   []string
	generateFiles  []string
	generateJSON   bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a presentation",
	Long: `Runs the whole pipeline in-process: documents and URLs are normalized and
indexed, images are generated, and the finished presentation is stored.`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&generatePrompt, "prompt", "p", "", "topic or instructions")
	generateCmd.Flags().StringArrayVarP(&generateURLs, "url", "u", nil, "web page to use as source (repeatable)")
	generateCmd.Flags().StringArrayVarP(&generateFiles, "file", "f", nil, "document to use as source (repeatable)")
	generateCmd.Flags().BoolVar(&generateJSON, "json", false, "print the presentation as JSON")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	input := app.GenerateInput{Prompt: generatePrompt, URLs: generateURLs}
	for _, path := range generateFiles {
		doc, err := readDocument(path)
		if err != nil {
			return err
		}
		input.Documents = append(input.Documents, doc)
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.Presentations.Generate(ctx, input)
	if err != nil {
		return fmt.Errorf("generate failed: %s", app.UserMessage(err))
	}
	return printPresentation(cmd, p, generateJSON)
}

func readDocument(path string) (source.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return source.Document{}, fmt.Errorf("read %s failed: %w", path, err)
	}
	return source.Document{
		Name:        filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Data:        data,
	}, nil
}

func printPresentation(cmd *cobra.Command, p *model.Presentation, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal presentation: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("id:     %s\n", p.ID)
	cmd.Printf("status: %s\n", p.Status)
	if p.Error != "" {
		cmd.Printf("error:  %s\n", p.Error)
	}
	cmd.Printf("title:  %s\n", p.Title)
	for _, img := range p.Images {
		cmd.Printf("image %d: %s (%s)\n", img.Position, img.URL, img.Description)
	}
	if p.Content != "" {
		cmd.Println()
		cmd.Println(p.Content)
	}
	return nil
}
