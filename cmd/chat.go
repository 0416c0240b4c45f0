package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/waseemkhan00777/askify-gemini/internal/api"
	"github.com/waseemkhan00777/askify-gemini/internal/transcript"
	"github.com/waseemkhan00777/askify-gemini/pkg/types"
)

var (
	youStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	askifyStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	hintStyle   = lipgloss.NewStyle().Faint(true)
)

var chatOpts struct {
	server  string
	framing string
	policy  string
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with a running askify server from the terminal",
	Long: `chat reads one prompt per line and prints the reply as it streams in.
Type /clear to start over and /quit (or Ctrl-D) to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		framing, err := api.ParseFraming(chatOpts.framing)
		if err != nil {
			return err
		}
		policy, err := parsePolicy(chatOpts.policy)
		if err != nil {
			return err
		}
		client := transcript.NewClient(chatOpts.server, transcript.WithFraming(framing))
		return runChat(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), client, policy)
	},
}

func init() {
	f := chatCmd.Flags()
	f.StringVar(&chatOpts.server, "server", "http://localhost:8080", "askify server base URL")
	f.StringVar(&chatOpts.framing, "framing", "sse", "stream framing to request: raw|sse")
	f.StringVar(&chatOpts.policy, "lock", "until-done", "when the prompt unlocks: until-done|until-first-chunk")

	rootCmd.AddCommand(chatCmd)
}

func parsePolicy(s string) (transcript.Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "until-done":
		return transcript.LockUntilDone, nil
	case "until-first-chunk":
		return transcript.LockUntilFirstChunk, nil
	default:
		return 0, fmt.Errorf("unknown lock policy %q", s)
	}
}

// replyPrinter writes only the part of the trailing assistant message that
// has not been printed yet.
type replyPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	printed int
}

func (p *replyPrinter) onChange(s transcript.Snapshot) {
	last, ok := s.Last()
	if !ok || last.Role != types.RoleAssistant {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(last.Content) > p.printed {
		fmt.Fprint(p.out, last.Content[p.printed:])
		p.printed = len(last.Content)
	}
}

func (p *replyPrinter) reset() {
	p.mu.Lock()
	p.printed = 0
	p.mu.Unlock()
}

func runChat(ctx context.Context, in io.Reader, out io.Writer, client *transcript.Client, policy transcript.Policy) error {
	printer := &replyPrinter{out: out}
	tr := transcript.New(transcript.WithPolicy(policy), transcript.WithOnChange(printer.onChange))

	fmt.Fprintln(out, hintStyle.Render("askify chat: /clear to start over, /quit to leave"))
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64<<10), 1<<20)
	for {
		fmt.Fprint(out, youStyle.Render("you> "))
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := sc.Text()

		switch strings.TrimSpace(line) {
		case "/quit", "/exit":
			return nil
		case "/clear":
			tr.Reset()
			fmt.Fprintln(out, hintStyle.Render("(transcript cleared)"))
			continue
		}

		turn, err := tr.Submit(line)
		if errors.Is(err, transcript.ErrEmptyPrompt) {
			continue
		}
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("error: "+err.Error()))
			continue
		}

		printer.reset()
		fmt.Fprint(out, askifyStyle.Render("askify> "))
		err = client.Send(ctx, turn)
		fmt.Fprintln(out)
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			fmt.Fprintln(out, errorStyle.Render("error: "+err.Error()))
		}
	}
}
