package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyiyo/tutor-voice/internal/core/prompt"
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the tutoring instruction sent to the model",
	RunE: func(cmd *cobra.Command, args []string) error {
		question, _ := cmd.Flags().GetString("question")
		answer, _ := cmd.Flags().GetString("answer")
		wrong, _ := cmd.Flags().GetString("wrong")
		_, err := fmt.Fprintln(cmd.OutOrStdout(), prompt.Build(prompt.Problem{
			Question:      question,
			CorrectAnswer: answer,
			WrongAttempt:  wrong,
		}))
		return err
	},
}
