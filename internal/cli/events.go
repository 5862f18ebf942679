// events.go implements "devmate events", a reader for the JSONL event log.
package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/devmate-dev/devmate/internal/log"
)

var limitFlag int

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent entries from the event log",
	Long: `Print the most recent events recorded in events.jsonl: logins, sends,
history refreshes, deletes, uploads and voice sessions.`,
	Args: cobra.NoArgs,
	RunE: runEvents,
}

func init() {
	eventsCmd.Flags().IntVarP(&limitFlag, "limit", "n", 20, "Number of events to show (0 for all)")
}

func runEvents(cmd *cobra.Command, args []string) error {
	home, err := resolveHome()
	if err != nil {
		return err
	}
	logger, err := log.NewLogger(home)
	if err != nil {
		return err
	}
	events, err := logger.ReadAll()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(events) == 0 {
		fmt.Fprintln(out, "No events recorded.")
		return nil
	}
	if limitFlag > 0 && len(events) > limitFlag {
		events = events[len(events)-limitFlag:]
	}
	for _, e := range events {
		fmt.Fprintln(out, formatEvent(e))
	}
	return nil
}

func formatEvent(e log.LogEvent) string {
	parts := []string{e.Time.Local().Format(time.DateTime), e.Event}
	if e.Username != "" {
		parts = append(parts, "user="+e.Username)
	}
	if e.ConversationID != "" {
		parts = append(parts, "conversation="+e.ConversationID)
	}
	if e.StreamID != "" {
		parts = append(parts, "stream="+e.StreamID)
	}
	if e.Messages > 0 {
		parts = append(parts, fmt.Sprintf("messages=%d", e.Messages))
	}
	if e.Conversations > 0 {
		parts = append(parts, fmt.Sprintf("conversations=%d", e.Conversations))
	}
	if e.File != "" {
		parts = append(parts, fmt.Sprintf("file=%s (%d bytes)", e.File, e.Bytes))
	}
	if e.DurationMs > 0 {
		parts = append(parts, fmt.Sprintf("took=%dms", e.DurationMs))
	}
	if e.Error != "" {
		parts = append(parts, fmt.Sprintf("error=%q", e.Error))
	}
	return strings.Join(parts, "  ")
}
