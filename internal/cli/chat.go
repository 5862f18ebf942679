// chat.go implements the conversation commands: send, history, show, new,
// delete and upload.
package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/devmate-dev/devmate/internal/backend"
	"github.com/devmate-dev/devmate/internal/chat"
	"github.com/devmate-dev/devmate/internal/render"
	"github.com/devmate-dev/devmate/internal/tui"
)

var (
	conversationFlag string
	newFlag          bool
	cachedFlag       bool
	yesFlag          bool
)

var sendCmd = &cobra.Command{
	Use:     "send [message]",
	Aliases: []string{"chat"},
	Short:   "Send a message and print the reply",
	Long: `Send a message to the assistant. Without --conversation the message
continues the conversation used last; --new starts a fresh one. When no
message argument is given it is read from stdin.`,
	RunE: runSend,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved conversations",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var showCmd = &cobra.Command{
	Use:   "show <conversation-id>",
	Short: "Print a saved conversation and continue it on the next send",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a new conversation on the next send",
	Args:  cobra.NoArgs,
	RunE:  runNew,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <conversation-id>",
	Short: "Delete a saved conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a document for the assistant to use",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpload,
}

func init() {
	sendCmd.Flags().StringVarP(&conversationFlag, "conversation", "c", "", "Conversation id to continue")
	sendCmd.Flags().BoolVar(&newFlag, "new", false, "Start a new conversation")
	historyCmd.Flags().BoolVar(&cachedFlag, "cached", false, "List the local copy without contacting the backend")
	deleteCmd.Flags().BoolVarP(&yesFlag, "yes", "y", false, "Do not ask for confirmation")
}

func runSend(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()
	if _, err := env.requireSession(); err != nil {
		return err
	}

	text := strings.Join(args, " ")
	if text == "" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading message: %w", err)
		}
		text = string(b)
	}

	id := conversationFlag
	fromFlag := id != ""
	if id == "" && !newFlag {
		id = env.activeConversation()
	}
	if id != "" {
		if err := resume(cmd, env, id); err != nil {
			if fromFlag || !errors.Is(err, chat.ErrUnknownConversation) {
				return err
			}
			// The remembered conversation is gone; start over.
			env.logger.Info("active conversation no longer exists", zap.String("conversation_id", id))
		}
	}

	msgs, sendErr := env.chat.SendMessage(cmd.Context(), text)
	if sendErr != nil && (errors.Is(sendErr, chat.ErrEmptyMessage) || errors.Is(sendErr, chat.ErrBusy)) {
		return sendErr
	}
	if n := len(msgs); n > 0 && msgs[n-1].Role == backend.RoleAssistant {
		printMessage(cmd.OutOrStdout(), msgs[n-1])
	}
	if sendErr != nil {
		return sendErr
	}

	newID, _ := chat.ConversationID(env.chat.State())
	return env.setActiveConversation(newID)
}

// resume makes id the active conversation, preferring fresh history and
// falling back to the local copy.
func resume(cmd *cobra.Command, env *appEnv, id string) error {
	if _, err := env.chat.RefreshHistory(cmd.Context()); err != nil {
		env.logger.Warn("refreshing history, using local copy", zap.Error(err))
		if _, err := env.chat.LoadCachedHistory(); err != nil {
			return err
		}
	}
	_, err := env.chat.LoadConversation(id)
	return err
}

func runHistory(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	var sums []chat.Summary
	if cachedFlag {
		sums, err = env.chat.LoadCachedHistory()
	} else {
		if _, err := env.requireSession(); err != nil {
			return err
		}
		sums, err = env.chat.RefreshHistory(cmd.Context())
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(sums) == 0 {
		fmt.Fprintln(out, "No conversations yet.")
		return nil
	}

	active := env.activeConversation()
	for _, s := range sums {
		marker := " "
		if s.ID == active {
			marker = "*"
		}
		when := "-"
		if !s.LastActivity.IsZero() {
			when = s.LastActivity.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(out, "%s %-26s  %-16s  %2d/%-2d  %s\n", marker, s.ID, when, s.UserMessages, s.TotalMessages, s.UserPreview)
		fmt.Fprintf(out, "  %-26s  %-16s  %5s  %s\n", "", "", "", s.AssistantPreview)
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()
	if _, err := env.requireSession(); err != nil {
		return err
	}

	if err := resume(cmd, env, args[0]); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var md *render.Markdown
	if tui.IsTTY() {
		if md, err = render.NewMarkdown("auto", 100); err != nil {
			env.logger.Warn("markdown renderer unavailable", zap.Error(err))
		}
	}
	for _, m := range env.chat.Messages() {
		printRendered(out, m, md)
	}
	return env.setActiveConversation(args[0])
}

func runNew(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.setActiveConversation(""); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "The next message starts a new conversation.")
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()
	if _, err := env.requireSession(); err != nil {
		return err
	}

	id := args[0]
	active := env.activeConversation()
	if id == active {
		if err := resume(cmd, env, id); err != nil && !errors.Is(err, chat.ErrUnknownConversation) {
			return err
		}
	}

	var confirm chat.Confirmer = newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
	if yesFlag {
		confirm = chat.ConfirmFunc(func(string) bool { return true })
	}

	err = env.chat.DeleteConversation(cmd.Context(), id, confirm)
	if errors.Is(err, chat.ErrDeclined) {
		fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
		return nil
	}
	if err != nil {
		return err
	}

	if id == active {
		if err := env.setActiveConversation(""); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
	return nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()
	if _, err := env.requireSession(); err != nil {
		return err
	}

	msg, err := env.chat.Upload(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}

func printMessage(w io.Writer, m backend.Message) {
	printRendered(w, m, nil)
}

func printRendered(w io.Writer, m backend.Message, md *render.Markdown) {
	body, att := render.Message(m.Role, m.Content)
	label := "You"
	if m.Role == backend.RoleAssistant {
		label = "DevMate"
		if md != nil {
			body = md.Render(body)
		}
	}
	fmt.Fprintf(w, "%s: %s\n", label, body)
	if att != nil {
		fmt.Fprintf(w, "  Download %s: %s\n", att.Filename, att.URL)
	}
}
