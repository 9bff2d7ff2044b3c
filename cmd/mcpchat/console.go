// Copyright (c) Microsoft. All rights reserved.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/convergent-analytics-ai-01/UWEPD/agents"
	"github.com/convergent-analytics-ai-01/UWEPD/chat"
	"github.com/convergent-analytics-ai-01/UWEPD/conversation"
)

const rule = "--------------------------------------------------"

var exitWords = map[string]bool{"exit": true, "quit": true, "q": true}

// console reads lines from one input shared by the chat loop and the tool
// approver. A single goroutine owns the reader so an abandoned approval
// prompt cannot swallow the next question.
type console struct {
	out         io.Writer
	lines       chan string
	interactive bool
}

func newConsole(in io.Reader, out io.Writer, interactive bool) *console {
	c := &console{out: out, lines: make(chan string), interactive: interactive}
	go func() {
		defer close(c.lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			c.lines <- sc.Text()
		}
	}()
	return c
}

func (c *console) readLine(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	select {
	case line, ok := <-c.lines:
		if !ok {
			return "", io.EOF
		}
		return strings.TrimSpace(line), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Approve asks on the console whether a tool call may run. Without a
// terminal every call is denied.
func (c *console) Approve(ctx context.Context, req agents.ApprovalRequest) (bool, error) {
	fmt.Fprintf(c.out, "\nTool call requires approval: %s/%s (call %s)\n", req.ServerLabel, req.Name, req.CallID)
	if len(req.Arguments) > 0 {
		fmt.Fprintf(c.out, "  Arguments: %s\n", req.Arguments)
	}
	if !c.interactive {
		fmt.Fprintln(c.out, "  Input is not a terminal; denying.")
		return false, nil
	}
	ans, err := c.readLine(ctx, "Approve? [y/N]: ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(ans) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// choose shows the saved conversations and returns the id picked to resume,
// or "" for a new conversation.
func (c *console) choose(ctx context.Context, list []conversation.Summary) (string, error) {
	if len(list) == 0 || !c.interactive {
		return "", nil
	}
	fmt.Fprintln(c.out, "\nSaved conversations:")
	printSummaries(c.out, list)
	fmt.Fprintln(c.out, "[N] New conversation")

	ans, err := c.readLine(ctx, "Select a number to resume, or 'N' for new: ")
	if err != nil {
		return "", err
	}
	ans = strings.ToLower(ans)
	if ans == "" || ans == "n" {
		return "", nil
	}
	if i, err := strconv.Atoi(ans); err == nil && i >= 1 && i <= len(list) {
		return list[i-1].ID, nil
	}
	fmt.Fprintln(c.out, "Invalid choice; starting a new conversation.")
	return "", nil
}

// loop asks each line as a question in conversation id until an exit word,
// end of input, or cancellation.
func (c *console) loop(ctx context.Context, sess *chat.Session, id string) error {
	fmt.Fprintln(c.out, "\nType your questions. Type 'exit' to quit.")
	fmt.Fprintln(c.out, rule)
	for {
		line, err := c.readLine(ctx, "\nYOU: ")
		if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
			fmt.Fprintln(c.out, "\n\nExiting chat.")
			return nil
		}
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}
		if exitWords[strings.ToLower(line)] {
			fmt.Fprintln(c.out, "Goodbye!")
			return nil
		}

		res, err := sess.Ask(ctx, id, line)
		printResult(c.out, res)
		if err != nil {
			fmt.Fprintf(c.out, "Error: %v\n", err)
			if ctx.Err() != nil {
				fmt.Fprintln(c.out, "\n\nExiting chat.")
				return nil
			}
		}
	}
}

func printResult(w io.Writer, res *agents.TurnResult) {
	if res == nil {
		return
	}
	if res.RunID != "" {
		fmt.Fprintf(w, "\nRun ID: %s\n", res.RunID)
	}
	if len(res.Invocations) > 0 {
		fmt.Fprintln(w, "  MCP Tool calls:")
		for _, ti := range res.Invocations {
			fmt.Fprintf(w, "    Tool Call ID: %s\n", ti.CallID)
			fmt.Fprintf(w, "    Type: %s\n", ti.Type)
			fmt.Fprintf(w, "    Name: %s\n", ti.Name)
			if !ti.Approved {
				fmt.Fprintln(w, "    Approved: no")
			}
		}
	}
	if res.Response == nil {
		return
	}
	text := res.Text()
	if text == "" {
		text = "<no text found>"
	}
	fmt.Fprintf(w, "\nASSISTANT:\n%s\n%s\n", text, rule)
}

func printSummaries(w io.Writer, list []conversation.Summary) {
	for i, s := range list {
		fmt.Fprintf(w, "[%d] id=%s  started=%s  last=%s: %s\n",
			i+1, s.ID, s.CreatedAt.Local().Format("2006-01-02 15:04"), lastRole(s), s.LastSnippet)
	}
}

func lastRole(s conversation.Summary) string {
	if s.LastRole == "" {
		return "-"
	}
	return string(s.LastRole)
}

func printHistory(w io.Writer, turns []conversation.Turn) {
	for _, t := range turns {
		ts := t.Timestamp.Local().Format("2006-01-02 15:04:05")
		switch t.Role {
		case conversation.RoleTool:
			label, name, callID := "", t.Text, ""
			if t.Tool != nil {
				label, name, callID = t.Tool.ServerLabel, t.Tool.Name, t.Tool.CallID
			}
			fmt.Fprintf(w, "[%s] tool: %s/%s (call %s)\n", ts, label, name, callID)
		default:
			fmt.Fprintf(w, "[%s] %s: %s\n", ts, t.Role, t.Text)
		}
	}
}
