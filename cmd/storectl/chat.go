package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/chat-storefront/internal/app"
	"github.com/example/chat-storefront/internal/conversation"
)

var chatCustomer string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the storefront as a customer",
	Long: `Reads one message per line from stdin and prints the storefront's reply.
Type "exit" or send EOF to stop.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(a *app.App) error {
		out := cmd.OutOrStdout()
		scanner := bufio.NewScanner(cmd.InOrStdin())

		fmt.Fprint(out, "> ")
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "exit" || line == "quit" {
				break
			}
			if line != "" {
				resp, err := a.Dispatcher.Handle(cmd.Context(), conversation.Message{CustomerID: chatCustomer, Text: line})
				if err != nil {
					return err
				}
				fmt.Fprintln(out, resp.ReplyText)
				if resp.PaymentLink != "" {
					fmt.Fprintf(out, "  [order %s]\n", resp.OrderID)
				}
			}
			fmt.Fprint(out, "> ")
		}
		fmt.Fprintln(out)
		return scanner.Err()
	})
}
