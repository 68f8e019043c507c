package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// AuditPrompt handles the brain-audit MCP prompt.
type AuditPrompt struct{}

// NewAuditPrompt creates an AuditPrompt.
func NewAuditPrompt() *AuditPrompt {
	return &AuditPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *AuditPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("brain-audit",
		mcp.WithPromptDescription(
			"Check the project for drift from its recorded rules and propose fixes or rule updates.",
		),
	)
}

// Handle processes the brain-audit prompt request.
func (p *AuditPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Architectural drift audit",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `observer_status` to see what the background observer found, " +
						"then run `audit_codebase` for the current project.\n\n" +
						"Then:\n" +
						"1. List every drift with its file, rule and evidence\n" +
						"2. Separate real violations from heuristic false positives\n" +
						"3. For real violations, propose the code change\n" +
						"4. If a rule is outdated, propose replacing it with `store_insight` and replace_id",
				),
			},
		},
	}, nil
}
