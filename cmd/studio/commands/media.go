package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/studio/pkg/cli"
	"github.com/haivivi/studio/pkg/mediastore"
)

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Fetch or delete generated media",
	Long: `Fetch or delete generated media.

Generated video and audio are stored as media:// handles in the context's
media backend. Images are kept inline in their records.`,
}

var mediaGetCmd = &cobra.Command{
	Use:   "get <uri>",
	Short: "Write the content of a media handle to a file",
	Long: `Write the content of a media handle to a file.

Example:
  studio media get media://0b6c... -o clip.mp4`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if outputFile == "" {
			return fmt.Errorf("output file is required, use -o flag")
		}
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		data, mimeType, err := e.media.ReadAll(cmd.Context(), mediaURI(args[0]))
		if err != nil {
			return err
		}
		if err := cli.OutputBytes(data, outputFile); err != nil {
			return err
		}
		cli.PrintSuccess("Wrote %s (%s, %s)", outputFile, mimeType, cli.FormatBytes(len(data)))
		return nil
	},
}

var mediaRmCmd = &cobra.Command{
	Use:     "rm <uri>",
	Aliases: []string{"delete"},
	Short:   "Delete the content of a media handle",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		uri := mediaURI(args[0])
		if err := e.media.Release(cmd.Context(), uri); err != nil {
			return err
		}
		cli.PrintSuccess("Deleted %s", uri)
		return nil
	},
}

// mediaURI accepts a bare handle id as well as a media:// URI.
func mediaURI(s string) string {
	if strings.HasPrefix(s, mediastore.Scheme) {
		return s
	}
	return mediastore.Scheme + s
}

func init() {
	mediaCmd.AddCommand(mediaGetCmd, mediaRmCmd)
	rootCmd.AddCommand(mediaCmd)
}
