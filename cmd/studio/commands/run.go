package commands

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/studio/pkg/cli"
	"github.com/haivivi/studio/pkg/conversation"
	"github.com/haivivi/studio/pkg/encoding"
	"github.com/haivivi/studio/pkg/mediastore"
	"github.com/haivivi/studio/pkg/studio"
)

// TurnFile is the request file accepted by 'studio run -f'.
type TurnFile struct {
	Text    string `yaml:"text" json:"text"`
	Image   string `yaml:"image,omitempty" json:"image,omitempty"`
	Edit    string `yaml:"edit,omitempty" json:"edit,omitempty"`
	Session string `yaml:"session,omitempty" json:"session,omitempty"`
}

// RunResult is the structured output of 'studio run'.
type RunResult struct {
	Session           string                 `json:"session" yaml:"session"`
	Tasks             []studio.Task          `json:"tasks" yaml:"tasks"`
	Records           []*conversation.Record `json:"records" yaml:"records"`
	Completed         int                    `json:"completed" yaml:"completed"`
	Degraded          bool                   `json:"degraded,omitempty" yaml:"degraded,omitempty"`
	CredentialInvalid bool                   `json:"credential_invalid,omitempty" yaml:"credential_invalid,omitempty"`
	Saved             []string               `json:"saved,omitempty" yaml:"saved,omitempty"`
}

var (
	runSession string
	runImage   string
	runEdit    string
	runSaveDir string
)

var runCmd = &cobra.Command{
	Use:   "run [text]",
	Short: "Run one assistant turn",
	Long: `Run one assistant turn.

The request is classified into one or more tasks (chat, search, image
generation or editing, video generation, text to speech) which run in
order. Without --session a new session is created.

Examples:
  studio run "what happened in tech news today"
  studio run --image cat.png "give the cat a hat"
  studio run -s SESSION --edit RECORD_ID "make it night time"
  studio run -f turn.yaml --save-dir out/
  studio run "draw a lighthouse" --json -q '.records[] | select(.type=="image") | .id'`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var req TurnFile
		if inputFile != "" {
			if err := cli.LoadRequest(inputFile, &req); err != nil {
				return err
			}
		}
		if len(args) > 0 {
			req.Text = strings.Join(args, " ")
		}
		if runSession != "" {
			req.Session = runSession
		}
		if runImage != "" {
			req.Image = runImage
		}
		if runEdit != "" {
			req.Edit = runEdit
		}
		if req.Image != "" && req.Edit != "" {
			return fmt.Errorf("--image and --edit cannot be combined")
		}

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

		sess, err := e.session(ctx, req.Session)
		if err != nil {
			return err
		}
		turn := studio.Turn{Text: req.Text}
		switch {
		case req.Image != "":
			if turn.Attachment, err = loadImage(req.Image); err != nil {
				return err
			}
		case req.Edit != "":
			if turn.Attachment, err = recordImage(ctx, e, sess.ID, req.Edit); err != nil {
				return err
			}
		}
		if turn.Text == "" && turn.Attachment == nil {
			return fmt.Errorf("nothing to run: give text, --image or -f")
		}

		structured := structuredOutput()
		renderer := cli.NewRenderer(100)
		if !structured {
			fmt.Println(renderer.Session(sess))
		}
		turn.Progress = func(i int, task studio.Task) {
			fmt.Fprintln(os.Stderr, renderer.Styles.Help.Render(
				fmt.Sprintf("[%d] %s", i+1, task.Capability.Progress())))
		}

		out := RunResult{Session: sess.ID}
		start := time.Now()
		res, err := e.assistant.Submit(ctx, sess.ID, turn, func(r *conversation.Record) {
			out.Records = append(out.Records, r)
			if !structured && r.Kind != conversation.KindUser {
				fmt.Println(renderer.Record(r))
				fmt.Println()
			}
		})
		if err != nil {
			return err
		}
		out.Tasks = res.Tasks
		out.Completed = res.Completed
		out.Degraded = res.Degraded
		out.CredentialInvalid = res.CredentialInvalid
		printVerbose("Turn finished in %s", cli.FormatDuration(time.Since(start)))

		if runSaveDir != "" {
			if out.Saved, err = saveMedia(cmd, e, out.Records, runSaveDir); err != nil {
				return err
			}
		}

		if structured {
			if err := outputResult(out); err != nil {
				return err
			}
		} else {
			for _, path := range out.Saved {
				cli.PrintSuccess("Saved %s", path)
			}
		}
		if res.CredentialInvalid {
			return fmt.Errorf("the API key of context %q was rejected", e.name)
		}
		return nil
	},
}

// loadImage reads an image file as an attachment.
func loadImage(path string) (*studio.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%s is not an image (%s)", path, mimeType)
	}
	return &studio.Attachment{MIMEType: mimeType, Data: data}, nil
}

// recordImage finds the image held by a record of the session.
func recordImage(ctx context.Context, e *env, sessionID, recordID string) (*studio.Attachment, error) {
	recs, err := e.store.Records(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		if r.ID == recordID {
			return studio.AttachmentFromRecord(r)
		}
	}
	return nil, fmt.Errorf("record %q not found in session %s", recordID, sessionID)
}

// saveMedia writes the media of image, video and audio records into dir.
func saveMedia(cmd *cobra.Command, e *env, recs []*conversation.Record, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	var saved []string
	for _, r := range recs {
		switch r.Kind {
		case conversation.KindImage, conversation.KindVideo, conversation.KindAudio:
		default:
			continue
		}
		var (
			data     []byte
			mimeType string
			err      error
		)
		switch {
		case encoding.IsDataURI(r.Data):
			mimeType, data, err = encoding.ParseDataURI(r.Data)
		case strings.HasPrefix(r.Data, mediastore.Scheme):
			data, mimeType, err = e.media.ReadAll(cmd.Context(), r.Data)
		default:
			continue
		}
		if err != nil {
			return saved, fmt.Errorf("failed to read %s record %s: %w", r.Kind, r.ID, err)
		}
		path := filepath.Join(dir, r.ID+extension(mimeType))
		if err := cli.OutputBytes(data, path); err != nil {
			return saved, err
		}
		saved = append(saved, path)
	}
	return saved, nil
}

func extension(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "video/mp4":
		return ".mp4"
	case "audio/wav":
		return ".wav"
	}
	if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

func init() {
	runCmd.Flags().StringVarP(&runSession, "session", "s", "", "session to continue (default: new session)")
	runCmd.Flags().StringVar(&runImage, "image", "", "attach an image file")
	runCmd.Flags().StringVar(&runEdit, "edit", "", "attach the image of a record in the session")
	runCmd.Flags().StringVar(&runSaveDir, "save-dir", "", "write generated media into this directory")
	rootCmd.AddCommand(runCmd)
}
