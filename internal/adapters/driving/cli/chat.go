package cli

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions interactively",
	Long: `Reads questions line by line and answers each one from the corpus.
Type 'exit' or 'quit', or send end of input, to leave.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	rt, err := bootstrap(cmd.Context(), settings, openLoad)
	if err != nil {
		return err
	}
	defer rt.Close() //nolint:errcheck // read-only

	in := cmd.InOrStdin()
	out := cmd.OutOrStdout()
	interactive := isTerminal(in)
	if interactive {
		cmd.Println(titleStyle.Render("Folio chat") + mutedStyle.Render(" (type 'exit' to leave)"))
	}

	scanner := bufio.NewScanner(in)
	for {
		if interactive {
			cmd.Print(headingStyle.Render("> "))
		}
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		answer, err := rt.Query.Ask(cmd.Context(), line)
		if err != nil {
			if cmd.Context().Err() != nil {
				return cmd.Context().Err()
			}
			cmd.Println(errorStyle.Render("Error: " + err.Error()))
			continue
		}
		renderAnswer(out, answer)
		cmd.Println()
	}
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
