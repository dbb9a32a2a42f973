package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/receptionist-widget/internal/analysis/tone"
	"github.com/zhouzirui/receptionist-widget/internal/client"
	"github.com/zhouzirui/receptionist-widget/internal/db"
	"github.com/zhouzirui/receptionist-widget/internal/model/chat"
	"github.com/zhouzirui/receptionist-widget/internal/model/profile"
	"github.com/zhouzirui/receptionist-widget/internal/service/conversation"
)

var (
	rawOutput bool
	wordWrap  int
)

// chatCmd runs an interactive conversation
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Start an interactive conversation with the receptionist.

Commands inside the session:
  /reset - start over (the backend forgets the session)
  /quit  - leave`,
	RunE: runChat,
}

// resetCmd clears a backend session without opening a conversation
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Ask the backend to forget a session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if sessionID == "" {
			return errors.New("--session is required")
		}
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		backend := client.New(cfg.Backend.BaseURL(), client.WithLogger(logger))
		if err := backend.Reset(cmd.Context(), sessionID); err != nil {
			return fmt.Errorf("reset session %s: %w", sessionID, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "session %s reset\n", sessionID)
		return nil
	},
}

func init() {
	chatCmd.Flags().BoolVar(&rawOutput, "raw", false, "Stream raw reply text instead of rendering settled replies")
	chatCmd.Flags().IntVar(&wordWrap, "wrap", 80, "Word wrap width for rendered replies")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	var profiles profile.Store = profile.NewMemoryStore(nil)
	if cfg.Profile.DBPath != "" {
		store, err := db.OpenSQLite(cfg.Profile.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()
		profiles = store
	}

	backend := client.New(cfg.Backend.BaseURL(), client.WithLogger(logger))
	conv := conversation.New(ctx, backend, profiles, conversation.Options{
		SessionID:     sessionID,
		Pacer:         tone.Pacer{Scale: cfg.Reveal.Scale},
		ThinkingDelay: cfg.Reveal.ThinkingDelay,
		Logger:        logger,
	})
	logger.Debug("chat session started", zap.String("session", conv.SessionID()))

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wordWrap),
	)
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}

	p := &printer{out: cmd.OutOrStdout(), renderer: renderer, raw: rawOutput}
	p.settled(conv.Snapshot().Messages)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(p.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(p.out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			p.settled(conv.Reset(ctx).Messages)
			continue
		}

		if err := p.exchange(ctx, conv, line); err != nil {
			fmt.Fprintf(p.out, "error: %v\n", err)
		}
	}
}

type printer struct {
	out      io.Writer
	renderer *glamour.TermRenderer
	raw      bool
}

// exchange sends line and prints the reply. In raw mode text appears as it
// is revealed; otherwise the settled reply is rendered as markdown.
func (p *printer) exchange(ctx context.Context, conv *conversation.Conversation, line string) error {
	start := len(conv.Snapshot().Messages) + 1 // skip the user message

	if !p.raw {
		if err := conv.Send(ctx, line); err != nil {
			return err
		}
		p.settled(conv.Snapshot().Messages[start:])
		return nil
	}

	updates, unsubscribe := conv.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		printed := ""
		for snap := range updates {
			if len(snap.Messages) <= start {
				continue
			}
			current := replyText(snap.Messages[start:])
			if strings.HasPrefix(current, printed) {
				fmt.Fprint(p.out, current[len(printed):])
			} else {
				fmt.Fprint(p.out, "\n"+current)
			}
			printed = current
		}
		fmt.Fprintln(p.out)
	}()

	err := conv.Send(ctx, line)
	unsubscribe()
	<-done
	return err
}

func (p *printer) settled(messages []chat.Message) {
	for _, m := range messages {
		if m.Sender != chat.SenderAI {
			continue
		}
		if p.raw {
			fmt.Fprintln(p.out, m.Text)
			continue
		}
		rendered, err := p.renderer.Render(m.Text)
		if err != nil {
			fmt.Fprintln(p.out, m.Text)
			continue
		}
		fmt.Fprint(p.out, rendered)
	}
}

func replyText(messages []chat.Message) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		if m.Sender == chat.SenderAI && m.Text != "" {
			parts = append(parts, m.Text)
		}
	}
	return strings.Join(parts, "\n")
}
