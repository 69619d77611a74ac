package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/studio/pkg/cli"
)

const appName = "studio"

// homeEnv overrides the home directory holding ~/.studio.
const homeEnv = "STUDIO_HOME"

var (
	// Global flags
	cfgFile     string
	contextName string
	outputFile  string
	inputFile   string
	outputJSON  bool
	query       string
	verbose     bool

	// Global configuration (loaded at init time)
	globalConfig *cli.Config

	// configLoadErr stores the error from loading for deferred reporting.
	configLoadErr error
)

var rootCmd = &cobra.Command{
	Use:   "studio",
	Short: "Multi-capability generative assistant",
	Long: `studio - A generative assistant that decides what to do with a request.

A single request can chat, search the web, generate or edit images,
generate video or read text aloud. Multi-step requests run in order, and a
step can use the text produced by the step before it.

Configuration is stored in ~/.studio/studio/ and supports multiple contexts,
similar to kubectl's context management.

Examples:
  # Set up a context
  studio ctx add dev --api-key YOUR_GEMINI_KEY

  # Ask something in a new session
  studio run "write a haiku about the sea and read it aloud"

  # Continue the session and edit the generated image
  studio run -s SESSION --edit RECORD_ID "make it night time"

  # Pipe output to another command
  studio session list --json -q '.[].title'
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.studio/studio/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context name to use")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	rootCmd.PersistentFlags().StringVarP(&inputFile, "file", "f", "", "input request file (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
	rootCmd.PersistentFlags().StringVarP(&query, "query", "q", "", "jq expression applied to structured output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func initConfig() {
	path := cfgFile
	if path == "" {
		p, err := getPaths()
		if err != nil {
			configLoadErr = err
			return
		}
		path = p.ConfigFile()
	}
	cfg, err := cli.LoadConfigWithPath(appName, path)
	if err != nil {
		configLoadErr = err
		return
	}
	globalConfig = cfg
}

// getConfig returns the global configuration.
func getConfig() (*cli.Config, error) {
	if globalConfig == nil {
		if configLoadErr != nil {
			return nil, fmt.Errorf("config not available: %w", configLoadErr)
		}
		return nil, fmt.Errorf("configuration not initialized")
	}
	return globalConfig, nil
}

// getPaths returns the directory layout, honoring STUDIO_HOME.
func getPaths() (*cli.Paths, error) {
	if home := os.Getenv(homeEnv); home != "" {
		return &cli.Paths{AppName: appName, HomeDir: home}, nil
	}
	return cli.NewPaths(appName)
}

// getContext returns the context configuration to use
func getContext() (*cli.Context, error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, err
	}

	ctx, err := cfg.ResolveContext(contextName)
	if err != nil {
		if contextName == "" {
			return nil, fmt.Errorf("no context specified. Use -c flag or set a default context with 'studio ctx use'")
		}
		return nil, err
	}

	return ctx, nil
}

// newLogger logs to stderr, at debug level with -v.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// structuredOutput reports whether the result should be written as data
// rather than rendered for the terminal.
func structuredOutput() bool {
	return outputJSON || query != "" || outputFile != ""
}

// outputResult outputs the result using cli package
func outputResult(result any) error {
	format := cli.FormatYAML
	if outputJSON {
		format = cli.FormatJSON
	}
	return cli.Output(result, cli.OutputOptions{
		Format: format,
		File:   outputFile,
		Query:  query,
	})
}

// printVerbose prints verbose output if enabled
func printVerbose(format string, args ...any) {
	cli.PrintVerbose(verbose, format, args...)
}
