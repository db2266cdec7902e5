package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tanpawarit/remibot/agent/catalog"
	contractx "github.com/tanpawarit/remibot/agent/contract"
)

type responder interface {
	HandleMessage(ctx context.Context, msg contractx.InboundMessage) contractx.Reply
}

func newChatCmd() *cobra.Command {
	var from string
	var memory bool
	var seedFile string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the pipeline from the terminal as a given phone number",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), s, memory)
			if err != nil {
				return err
			}
			defer a.Close()

			if seedFile != "" {
				seed, err := catalog.LoadSeed(seedFile)
				if err != nil {
					return err
				}
				if _, err := seed.Apply(cmd.Context(), a.catalog); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Chatting as %s. Type 'exit' to quit.\n", from)
			return runChat(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), a.orch, from)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "sender phone number")
	cmd.Flags().BoolVar(&memory, "memory", false, "use in-memory stores instead of Postgres")
	cmd.Flags().StringVar(&seedFile, "seed", "", "YAML catalog applied before chatting (handy with --memory)")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func runChat(ctx context.Context, in io.Reader, out io.Writer, orch responder, from string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	you := color.New(color.FgCyan, color.Bold)
	bot := color.New(color.FgGreen)

	scanner := bufio.NewScanner(in)
	for seq := 1; ; seq++ {
		fmt.Fprint(out, you.Sprint("> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "exit" || text == "quit" {
			return nil
		}

		reply := orch.HandleMessage(ctx, contractx.InboundMessage{
			MessageID: fmt.Sprintf("cli-%d-%d", time.Now().Unix(), seq),
			From:      from,
			Body:      text,
		})
		fmt.Fprintln(out, bot.Sprint(reply.Text))
		fmt.Fprintln(out, statusLine(reply))
	}
}

func statusLine(reply contractx.Reply) string {
	status := reply.Status()
	label := color.New(color.FgHiBlack).Sprintf("[%s]", status)
	switch status {
	case contractx.StatusCreated:
		label = color.New(color.FgGreen, color.Bold).Sprintf("[%s %v]", status, reply.Metadata["id_remito"])
	case contractx.StatusError:
		label = color.New(color.FgRed).Sprintf("[%s]", status)
	case contractx.StatusCancelled:
		label = color.New(color.FgYellow).Sprintf("[%s]", status)
	}
	return label
}
