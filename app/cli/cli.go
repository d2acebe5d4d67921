// Package cli is an interactive prompt over the same agent the HTTP
// endpoint uses.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"caagent/app/agent"
	"caagent/types"

	"github.com/google/uuid"
)

const toolSummaryLimit = 300

// Run reads questions from stdin until EOF, an empty line, or an
// exit/quit sentinel. All questions share one session id so follow-ups
// see the prior turns.
func Run(a *agent.Agent) {
	fmt.Println("CA-GPT Agent CLI (type 'exit' to quit)")
	sessionID := "cli-" + uuid.NewString()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nYou: ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			break
		}
		switch strings.ToLower(question) {
		case "exit", "quit":
			return
		}

		fmt.Println("...thinking...")
		res, err := a.CallAgent(context.Background(), sessionID, question, true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		fmt.Printf("\nCA-GPT: %s\n", res.Answer)
		if len(res.KBSources) > 0 {
			fmt.Printf("\nKB Sources: %s\n", strings.Join(res.KBSources, ", "))
		}
		if res.ToolUsed != "" {
			fmt.Printf("\nTool used: %s\n", res.ToolUsed)
			fmt.Printf("Tool result summary: %s\n", toolSummary(res.ToolResult))
		}
	}
}

func toolSummary(result any) string {
	lawsResult, ok := result.(types.LawsResult)
	if !ok {
		return fmt.Sprintf("%v", result)
	}
	text := lawsResult.Text
	if len(text) > toolSummaryLimit {
		text = text[:toolSummaryLimit]
	}
	return text
}
