package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/docuchat/internal/core/domain"
	"github.com/custodia-labs/docuchat/internal/core/ports/driving"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Manage chat sessions and talk to your documents",
	Long: `Create chat sessions and send messages. Each turn retrieves the passages
most relevant to your question and asks the model to answer from them.`,
}

var chatNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a new chat session",
	Args:  cobra.NoArgs,
	RunE:  runChatNew,
}

var chatListCmd = &cobra.Command{
	Use:   "list",
	Short: "List chat sessions",
	Args:  cobra.NoArgs,
	RunE:  runChatList,
}

var chatShowCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Show a session transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runChatShow,
}

var chatUpdateCmd = &cobra.Command{
	Use:   "update [session-id]",
	Short: "Change session title, model or retrieval",
	Args:  cobra.ExactArgs(1),
	RunE:  runChatUpdate,
}

var chatDeleteCmd = &cobra.Command{
	Use:     "delete [session-id]",
	Aliases: []string{"rm"},
	Short:   "Delete a chat session",
	Args:    cobra.ExactArgs(1),
	RunE:    runChatDelete,
}

var chatSendCmd = &cobra.Command{
	Use:   "send [session-id] [message...]",
	Short: "Send one message and print the reply",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runChatSend,
}

var chatReplCmd = &cobra.Command{
	Use:   "repl [session-id]",
	Short: "Chat interactively",
	Long: `Reads messages line by line and prints each reply. Without a session ID a
new session is created. Type /quit or press Ctrl+D to leave.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChatRepl,
}

var chatExportCmd = &cobra.Command{
	Use:   "export [session-id]",
	Short: "Export a session as JSON or YAML",
	Args:  cobra.ExactArgs(1),
	RunE:  runChatExport,
}

// Flags for chat commands.
var (
	chatTitle   string
	chatModel   string
	chatNoRAG   bool
	chatUseRAG  string
	chatSources bool

	turnTemperature float64
	turnMaxTokens   int
	turnTopP        float64
	turnMaxResults  int

	exportFormat string
	exportOutput string
)

func init() {
	chatNewCmd.Flags().StringVar(&chatTitle, "title", "", "session title (defaults to the creation time)")
	chatNewCmd.Flags().StringVarP(&chatModel, "model", "m", "", "model for this session")
	chatNewCmd.Flags().BoolVar(&chatNoRAG, "no-rag", false, "answer without retrieving documents")

	chatUpdateCmd.Flags().StringVar(&chatTitle, "title", "", "new title")
	chatUpdateCmd.Flags().StringVarP(&chatModel, "model", "m", "", "new model")
	chatUpdateCmd.Flags().StringVar(&chatUseRAG, "rag", "", "enable or disable retrieval (true|false)")

	for _, c := range []*cobra.Command{chatSendCmd, chatReplCmd} {
		c.Flags().Float64Var(&turnTemperature, "temperature", 0, "sampling temperature")
		c.Flags().IntVar(&turnMaxTokens, "max-tokens", 0, "maximum tokens in the reply")
		c.Flags().Float64Var(&turnTopP, "top-p", 0, "nucleus sampling threshold")
		c.Flags().IntVarP(&turnMaxResults, "results", "k", 0, "number of passages to retrieve")
		c.Flags().BoolVar(&chatSources, "sources", false, "print the passages used for the reply")
	}
	chatReplCmd.Flags().StringVarP(&chatModel, "model", "m", "", "model for a new session")

	chatExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "output format (json|yaml)")
	chatExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to file instead of stdout")

	chatCmd.AddCommand(chatNewCmd)
	chatCmd.AddCommand(chatListCmd)
	chatCmd.AddCommand(chatShowCmd)
	chatCmd.AddCommand(chatUpdateCmd)
	chatCmd.AddCommand(chatDeleteCmd)
	chatCmd.AddCommand(chatSendCmd)
	chatCmd.AddCommand(chatReplCmd)
	chatCmd.AddCommand(chatExportCmd)
	rootCmd.AddCommand(chatCmd)
}

func runChatNew(cmd *cobra.Command, _ []string) error {
	if err := requireChat(); err != nil {
		return err
	}

	useRAG := !chatNoRAG
	session, err := chatService.Create(cmd.Context(), driving.CreateChatRequest{
		Title:  chatTitle,
		Model:  chatModel,
		UseRAG: &useRAG,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	cmd.Printf("Created session %s\n", session.ID)
	printSessionHeader(cmd, session)
	return nil
}

func runChatList(cmd *cobra.Command, _ []string) error {
	if err := requireChat(); err != nil {
		return err
	}

	sessions, err := chatService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		cmd.Println("No chat sessions.")
		return nil
	}

	cmd.Println("Chat sessions:")
	cmd.Println()
	for i := range sessions {
		cmd.Printf("  %s\n", sessions[i].ID)
		cmd.Printf("    Title: %s\n", sessions[i].Title)
		cmd.Printf("    Model: %s  RAG: %s\n", sessions[i].Model, onOff(sessions[i].UseRAG))
		cmd.Printf("    Updated: %s\n", sessions[i].UpdatedAt.Local().Format(timeFormat))
		cmd.Println()
	}
	cmd.Printf("Total: %d sessions\n", len(sessions))
	return nil
}

func runChatShow(cmd *cobra.Command, args []string) error {
	if err := requireChat(); err != nil {
		return err
	}

	session, err := chatService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	printSessionHeader(cmd, session)
	cmd.Println()
	if len(session.Messages) == 0 {
		cmd.Println("  (no messages)")
		return nil
	}
	for _, msg := range session.Messages {
		cmd.Printf("[%s] %s\n", msg.Timestamp.Local().Format(timeFormat), msg.Role)
		cmd.Println(msg.Content)
		cmd.Println()
	}
	return nil
}

func runChatUpdate(cmd *cobra.Command, args []string) error {
	if err := requireChat(); err != nil {
		return err
	}

	var update domain.ChatUpdate
	if cmd.Flags().Changed("title") {
		update.Title = &chatTitle
	}
	if cmd.Flags().Changed("model") {
		update.Model = &chatModel
	}
	if cmd.Flags().Changed("rag") {
		v, err := parseBool(chatUseRAG)
		if err != nil {
			return err
		}
		update.UseRAG = &v
	}
	if update.Title == nil && update.Model == nil && update.UseRAG == nil {
		return fmt.Errorf("%w: nothing to update (use --title, --model or --rag)", domain.ErrInvalidInput)
	}

	session, err := chatService.Update(cmd.Context(), args[0], update)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	cmd.Printf("Updated session %s\n", session.ID)
	printSessionHeader(cmd, session)
	return nil
}

func runChatDelete(cmd *cobra.Command, args []string) error {
	if err := requireChat(); err != nil {
		return err
	}
	if err := chatService.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	cmd.Printf("Deleted session %s\n", args[0])
	return nil
}

func runChatSend(cmd *cobra.Command, args []string) error {
	if err := requireChat(); err != nil {
		return err
	}
	return sendTurn(cmd, args[0], strings.Join(args[1:], " "))
}

func turnOptions(cmd *cobra.Command) domain.TurnOptions {
	opts := domain.TurnOptions{
		MaxTokens:  turnMaxTokens,
		TopP:       turnTopP,
		MaxResults: turnMaxResults,
	}
	if cmd.Flags().Changed("temperature") {
		opts.Temperature = domain.Float64(turnTemperature)
	}
	return opts
}

func sendTurn(cmd *cobra.Command, sessionID, text string) error {
	result, err := chatService.SendTurn(cmd.Context(), sessionID, text, turnOptions(cmd))
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Message.Content)
	printOutcome(cmd, "retrieval", result.Retrieval)
	if chatSources && len(result.RelevantDocs) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for _, d := range result.RelevantDocs {
			cmd.Printf("  - %s (similarity %.3f)\n", d.Label, d.Similarity)
		}
	}
	return nil
}

func runChatRepl(cmd *cobra.Command, args []string) error {
	if err := requireChat(); err != nil {
		return err
	}

	var sessionID string
	if len(args) == 1 {
		session, err := chatService.Get(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get session: %w", err)
		}
		sessionID = session.ID
	} else {
		session, err := chatService.Create(cmd.Context(), driving.CreateChatRequest{Model: chatModel})
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		sessionID = session.ID
		cmd.Printf("Started session %s\n", sessionID)
	}

	in := cmd.InOrStdin()
	interactive := isTerminal(in)
	if interactive {
		cmd.Println("Type /quit or press Ctrl+D to leave.")
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		if interactive {
			fmt.Fprint(cmd.OutOrStdout(), "> ")
		}
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		}

		if err := sendTurn(cmd, sessionID, line); err != nil {
			cmd.PrintErrf("Error: %v\n", err)
		}
		if interactive {
			fmt.Fprintln(cmd.OutOrStdout())
		}
	}
	return scanner.Err()
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func runChatExport(cmd *cobra.Command, args []string) error {
	if err := requireChat(); err != nil {
		return err
	}

	session, err := chatService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	data, err := encodeSession(session, exportFormat)
	if err != nil {
		return err
	}

	if exportOutput == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(exportOutput, data, 0600); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	cmd.Printf("Exported session %s to %s\n", session.ID, exportOutput)
	return nil
}

func encodeSession(session *domain.ChatSession, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "json":
		data, err := json.MarshalIndent(session, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding json: %w", err)
		}
		return append(data, '\n'), nil
	case "yaml", "yml":
		data, err := yaml.Marshal(session)
		if err != nil {
			return nil, fmt.Errorf("encoding yaml: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: unknown export format %q (use json or yaml)", domain.ErrInvalidInput, format)
	}
}

func printSessionHeader(cmd *cobra.Command, session *domain.ChatSession) {
	cmd.Printf("  Title:    %s\n", session.Title)
	cmd.Printf("  Model:    %s\n", session.Model)
	cmd.Printf("  RAG:      %s\n", onOff(session.UseRAG))
	cmd.Printf("  Messages: %d\n", len(session.Messages))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0":
		return false, nil
	default:
		return false, fmt.Errorf("%w: expected true or false, got %q", domain.ErrInvalidInput, s)
	}
}
