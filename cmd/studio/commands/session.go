package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/haivivi/studio/pkg/cli"
	"github.com/haivivi/studio/pkg/conversation"
)

var sessionCmd = &cobra.Command{
	Use:     "session",
	Aliases: []string{"sessions"},
	Short:   "Manage stored conversations",
}

var sessionNewCmd = &cobra.Command{
	Use:   "new [title]",
	Short: "Create an empty session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		title := ""
		if len(args) == 1 {
			title = args[0]
		}
		sess, err := e.store.CreateSession(cmd.Context(), title)
		if err != nil {
			return err
		}
		if structuredOutput() {
			return outputResult(sess)
		}
		fmt.Println(sess.ID)
		return nil
	},
}

var sessionListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		sessions, err := e.store.ListSessions(cmd.Context())
		if err != nil {
			return err
		}
		if structuredOutput() {
			if sessions == nil {
				sessions = []*conversation.Session{}
			}
			return outputResult(sessions)
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tRECORDS\tUPDATED")
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.ID, s.Title, s.Records, s.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the records of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		sess, err := e.session(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		recs, err := e.store.Records(cmd.Context(), sess.ID)
		if err != nil {
			return err
		}
		if structuredOutput() {
			return outputResult(struct {
				*conversation.Session `yaml:",inline"`
				Records               []*conversation.Record `json:"records" yaml:"records"`
			}{sess, recs})
		}

		r := cli.NewRenderer(100)
		fmt.Println(r.Session(sess))
		fmt.Println()
		fmt.Println(r.Records(recs))
		return nil
	},
}

var sessionRenameCmd = &cobra.Command{
	Use:   "rename <id> <title>",
	Short: "Rename a session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.store.RenameSession(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		cli.PrintSuccess("Session %s renamed to %q", args[0], args[1])
		return nil
	},
}

var sessionDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a session and its generated media",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.assistant.DeleteSession(cmd.Context(), args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Session %s deleted", args[0])
		return nil
	},
}

func init() {
	sessionCmd.AddCommand(sessionNewCmd, sessionListCmd, sessionShowCmd, sessionRenameCmd, sessionDeleteCmd)
	rootCmd.AddCommand(sessionCmd)
}
