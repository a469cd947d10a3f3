// Package approvals gates sensitive steps behind a human decision.
package approvals

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rivermist/shopflow/pkg/schema"
)

// Provider decides an approval request.
type Provider interface {
	Request(req schema.ApprovalRequest) (schema.ApprovalDecision, error)
}

// AutoProvider approves everything. The default for unattended runs.
type AutoProvider struct{}

func (AutoProvider) Request(schema.ApprovalRequest) (schema.ApprovalDecision, error) {
	return schema.ApprovalDecision{Approved: true, Notes: "Auto-approved."}, nil
}

// ConsoleProvider prompts an operator on the given reader/writer pair.
type ConsoleProvider struct {
	In  io.Reader
	Out io.Writer
}

// NewConsoleProvider creates a provider over stdin/stdout.
func NewConsoleProvider() *ConsoleProvider {
	return &ConsoleProvider{In: os.Stdin, Out: os.Stdout}
}

func (p *ConsoleProvider) Request(req schema.ApprovalRequest) (schema.ApprovalDecision, error) {
	fmt.Fprintln(p.Out, "\nApproval required")
	fmt.Fprintln(p.Out, "Intent:", req.Intent)
	fmt.Fprintln(p.Out, "Task:", req.Task)
	if len(req.Notes) > 0 {
		fmt.Fprintln(p.Out, "Notes:", strings.Join(req.Notes, " | "))
	}
	if req.ResultPreview != "" {
		// Cap by rune count so a cut never lands inside a multi-byte character.
		preview := []rune(req.ResultPreview)
		if len(preview) > 500 {
			preview = preview[:500]
		}
		fmt.Fprintln(p.Out, "Preview:", string(preview))
	}
	fmt.Fprint(p.Out, "Approve? (y/N): ")

	line, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return schema.ApprovalDecision{}, fmt.Errorf("read approval decision: %w", err)
	}
	if strings.ToLower(strings.TrimSpace(line)) == "y" {
		return schema.ApprovalDecision{Approved: true, Notes: "Approved by operator."}, nil
	}
	return schema.ApprovalDecision{Approved: false, Notes: "Rejected by operator."}, nil
}

// FromEnv selects the provider: APPROVAL_MODE "manual" prompts on the
// console, anything else auto-approves.
func FromEnv() Provider {
	if strings.ToLower(os.Getenv("APPROVAL_MODE")) == "manual" {
		return NewConsoleProvider()
	}
	return AutoProvider{}
}
