// Package prompts implements MCP prompt handlers.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// StartPrompt handles the brain-start MCP prompt.
// It links a project and loads its recorded rules before any work starts.
type StartPrompt struct{}

// NewStartPrompt creates a StartPrompt.
func NewStartPrompt() *StartPrompt {
	return &StartPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StartPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("brain-start",
		mcp.WithPromptDescription(
			"Link a project to myBrAIn and load its recorded rules and context before starting work.",
		),
		mcp.WithArgument("root_path",
			mcp.ArgumentDescription("Project root directory. Default: the current working directory"),
		),
		mcp.WithArgument("task",
			mcp.ArgumentDescription("What you are about to work on, used to recall relevant rules"),
		),
	)
}

// Handle processes the brain-start prompt request.
func (p *StartPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	root := "."
	task := "general work on this project"
	if args := req.Params.Arguments; args != nil {
		if r, ok := args["root_path"]; ok && r != "" {
			root = r
		}
		if t, ok := args["task"]; ok && t != "" {
			task = t
		}
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Start work in %s", root),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"I am starting work in the project at '%s'.\n\n"+
						"Please:\n"+
						"1. Run `initialize_workbase` with root_path='%s' and keep the returned workbase_id\n"+
						"2. Run `recall_context` with that workbase_id and query='%s'\n"+
						"3. Summarize the rules and conventions that apply, grouped by category\n"+
						"4. Follow them while working, and record new conventions we agree on with `store_insight`",
					root, root, task,
				)),
			},
		},
	}, nil
}
