package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "tutor",
	Short: "Voice math tutor",
	Long: `tutor opens a live voice session with a realtime model that coaches a student
through one math problem, printing both sides of the conversation as it goes.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "tutor", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd, talkCmd, promptCmd)

	for _, c := range []*cobra.Command{talkCmd, promptCmd} {
		c.Flags().StringP("question", "q", "", "the math problem")
		c.Flags().StringP("answer", "a", "", "the correct answer (asked from the relay when empty)")
		c.Flags().StringP("wrong", "w", "", "the student's previous attempt")
		_ = c.MarkFlagRequired("question")
	}
	talkCmd.Flags().StringP("provider", "p", "gemini", "realtime provider: gemini or openai")
	talkCmd.Flags().String("relay", "", "relay base URL (default from RELAY_URL)")
	talkCmd.Flags().Bool("meter", false, "print input/output levels")
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
