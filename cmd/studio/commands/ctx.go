package commands

import (
	"fmt"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/haivivi/studio/pkg/cli"
	"github.com/haivivi/studio/pkg/studio"
)

var ctxCmd = &cobra.Command{
	Use:   "ctx",
	Short: "Manage contexts",
	Long: `Manage contexts.

A context holds the Gemini API key, optional OpenAI-compatible text backend,
model overrides and where sessions and generated media are kept, similar to
kubectl's context management.

Configuration is stored in ~/.studio/studio/config.yaml`,
}

var ctxAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or replace a context",
	Long: `Add or replace a context.

Example:
  studio ctx add dev --api-key YOUR_GEMINI_KEY
  studio ctx add local --api-key KEY --media memory --voice Puck
  studio ctx add mixed --api-key KEY --openai-key OA_KEY --openai-model gpt-4o-mini
  studio ctx add -f context.yaml team`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cctx := &cli.Context{}
		if inputFile != "" {
			if err := cli.LoadRequest(inputFile, cctx); err != nil {
				return err
			}
		}

		f := cmd.Flags()
		str := func(name string, dst *string) {
			if f.Changed(name) {
				*dst, _ = f.GetString(name)
			}
		}
		num := func(name string, dst *int) {
			if f.Changed(name) {
				*dst, _ = f.GetInt(name)
			}
		}
		str("api-key", &cctx.APIKey)
		str("base-url", &cctx.BaseURL)
		str("voice", &cctx.Voice)
		str("media", &cctx.Media)
		str("store", &cctx.Store)
		str("chat-model", &cctx.Models.Chat)
		str("video-model", &cctx.Models.Video)
		num("poll-interval", &cctx.PollInterval)
		num("max-poll-attempts", &cctx.MaxPollAttempts)
		num("sample-rate", &cctx.OutputSampleRate)
		num("timeout", &cctx.Timeout)

		if f.Changed("openai-key") {
			if cctx.OpenAI == nil {
				cctx.OpenAI = &studio.OpenAIConfig{}
			}
			str("openai-key", &cctx.OpenAI.APIKey)
			str("openai-base-url", &cctx.OpenAI.BaseURL)
			str("openai-model", &cctx.OpenAI.Model)
		}

		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.AddContext(args[0], cctx); err != nil {
			return err
		}
		cli.PrintSuccess("Context %q saved", args[0])
		return nil
	},
}

var ctxUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.UseContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Switched to context %q", args[0])
		return nil
	},
}

var ctxCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Display the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if cfg.CurrentContext == "" {
			return fmt.Errorf("no current context set")
		}
		fmt.Println(cfg.CurrentContext)
		return nil
	},
}

var ctxListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		names := cfg.ListContexts()
		slices.Sort(names)

		if structuredOutput() {
			return outputResult(names)
		}
		if len(names) == 0 {
			fmt.Println("No contexts configured")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CURRENT\tNAME\tTEXT\tMEDIA")
		for _, name := range names {
			cctx := cfg.Contexts[name]
			current := ""
			if name == cfg.CurrentContext {
				current = "*"
			}
			text := "gemini"
			if cctx.OpenAI != nil {
				text = "openai"
			}
			media := cctx.Media
			if media == "" {
				media = "local"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", current, name, text, media)
		}
		return w.Flush()
	},
}

var ctxDeleteCmd = &cobra.Command{
	Use:     "delete <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a context",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.DeleteContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Context %q deleted", args[0])
		return nil
	},
}

var ctxShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show a context with secrets masked",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		name := contextName
		if len(args) == 1 {
			name = args[0]
		}
		cctx, err := cfg.ResolveContext(name)
		if err != nil {
			return err
		}
		return outputResult(maskContext(cctx))
	},
}

// maskContext returns a copy of c safe to print.
func maskContext(c *cli.Context) *cli.Context {
	m := *c
	m.APIKey = cli.MaskAPIKey(c.APIKey)
	if c.OpenAI != nil {
		oa := *c.OpenAI
		oa.APIKey = cli.MaskAPIKey(oa.APIKey)
		m.OpenAI = &oa
	}
	if c.S3 != nil {
		s3 := *c.S3
		s3.SecretAccessKey = cli.MaskAPIKey(s3.SecretAccessKey)
		m.S3 = &s3
	}
	return &m
}

func init() {
	f := ctxAddCmd.Flags()
	f.String("api-key", "", "Gemini API key")
	f.String("base-url", "", "Gemini API base URL")
	f.String("openai-key", "", "OpenAI-compatible API key for text generation")
	f.String("openai-base-url", "", "OpenAI-compatible base URL")
	f.String("openai-model", "", "OpenAI-compatible model")
	f.String("chat-model", "", "chat model override")
	f.String("video-model", "", "video model override")
	f.String("voice", "", "speech voice (default Kore)")
	f.String("media", "", `media backend: "local", "local:<dir>", "memory" or "s3"`)
	f.String("store", "", "session database directory")
	f.Int("poll-interval", 0, "video poll interval in seconds")
	f.Int("max-poll-attempts", 0, "video poll attempts, negative for unbounded")
	f.Int("sample-rate", 0, "resample speech output to this rate")
	f.Int("timeout", 0, "per-turn timeout in seconds")

	ctxCmd.AddCommand(ctxAddCmd, ctxUseCmd, ctxCurrentCmd, ctxListCmd, ctxDeleteCmd, ctxShowCmd)
	rootCmd.AddCommand(ctxCmd)
}
