// voice.go implements "devmate voice", which sends one recorded utterance
// over the voice socket and prints the reply.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/devmate-dev/devmate/internal/voice"
)

var (
	audioFileFlag string
	audioOutFlag  string
)

var voiceCmd = &cobra.Command{
	Use:   "voice",
	Short: "Send a recorded question and get a spoken reply",
	Long: `Stream an audio file (webm/opus, as a browser records it) to the
voice endpoint. The transcript and the assistant's answer are printed; with
--out the spoken answer is saved to a file. Use --file - to read stdin.`,
	Args: cobra.NoArgs,
	RunE: runVoice,
}

func init() {
	voiceCmd.Flags().StringVarP(&audioFileFlag, "file", "f", "", "Audio file to send (- for stdin)")
	voiceCmd.Flags().StringVarP(&audioOutFlag, "out", "o", "", "Write the spoken reply to this file")
	_ = voiceCmd.MarkFlagRequired("file")
}

func runVoice(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	sess, err := env.requireSession()
	if err != nil {
		return err
	}

	var src io.Reader = cmd.InOrStdin()
	if audioFileFlag != "-" {
		f, err := os.Open(audioFileFlag)
		if err != nil {
			return fmt.Errorf("opening audio: %w", err)
		}
		defer f.Close()
		src = f
	}

	wsURL, err := env.cfg.VoiceURL()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	stream, err := voice.Dial(ctx, wsURL, sess.Token, voice.Options{Events: env.events, Logger: env.logger})
	if err != nil {
		return err
	}
	defer stream.Close()

	if _, err := stream.StreamReader(ctx, src, env.cfg.Voice.ChunkSize); err != nil {
		return err
	}

	reply, err := stream.Await(ctx)
	if errors.Is(err, voice.ErrUnauthorized) {
		return fmt.Errorf("%w; run: devmate login", err)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "You: %s\n", reply.Transcript)
	fmt.Fprintf(out, "DevMate: %s\n", reply.Text)

	if audioOutFlag != "" {
		if err := os.WriteFile(audioOutFlag, reply.Audio, 0600); err != nil {
			return fmt.Errorf("writing reply audio: %w", err)
		}
		fmt.Fprintf(out, "Saved spoken reply to %s (%d bytes)\n", audioOutFlag, len(reply.Audio))
	}
	return nil
}
