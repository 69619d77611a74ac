package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var improveCmd = &cobra.Command{
	Use:   "improve <text>",
	Short: "Rewrite a prompt to be more detailed",
	Long: `Rewrite a prompt to be more detailed and descriptive.

Example:
  studio improve "a cat on a roof"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()
		if err := e.requireReady(); err != nil {
			return err
		}

		ctx, cancel := e.turnContext(cmd.Context())
		defer cancel()
		improved, err := e.assistant.ImprovePrompt(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		if structuredOutput() {
			return outputResult(map[string]string{"prompt": improved})
		}
		fmt.Println(improved)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(improveCmd)
}
