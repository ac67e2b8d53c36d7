package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"gopherai-slides/internal/app"
)

var showJSON bool

var askCmd = &cobra.Command{
	Use:   "ask [presentation-id] [question]",
	Short: "Ask a question about a presentation",
	Args:  cobra.ExactArgs(2),
	RunE:  runAsk,
}

var showCmd = &cobra.Command{
	Use:   "show [presentation-id]",
	Short: "Print a stored presentation",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "print the presentation as JSON")
	rootCmd.AddCommand(askCmd, showCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	answer, err := a.QA.Answer(ctx, args[0], args[1])
	if err != nil {
		if errors.Is(err, app.ErrNoKnowledgeBase) {
			return err
		}
		return fmt.Errorf("answer failed: %s", app.UserMessage(err))
	}
	cmd.Println(answer)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.Presentations.Get(ctx, args[0])
	if err != nil {
		return err
	}
	return printPresentation(cmd, p, showJSON)
}
