// Package inputs collects required step inputs from a human or from
// environment defaults.
package inputs

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rivermist/shopflow/pkg/schema"
)

// Provider supplies values for requested fields. Fields the provider cannot
// supply are simply absent from the returned map.
type Provider interface {
	RequestInputs(req schema.InputRequest) (map[string]string, error)
}

// AutoProvider answers from HUMAN_INPUT_DEFAULT_<FIELD> environment
// variables. Fields without a default stay missing.
type AutoProvider struct{}

func (AutoProvider) RequestInputs(req schema.InputRequest) (map[string]string, error) {
	values := make(map[string]string)
	for _, field := range req.Fields {
		if v := os.Getenv("HUMAN_INPUT_DEFAULT_" + strings.ToUpper(field)); v != "" {
			values[field] = v
		}
	}
	return values, nil
}

// ConsoleProvider prompts for each field on the given reader/writer pair.
type ConsoleProvider struct {
	In  io.Reader
	Out io.Writer
}

// NewConsoleProvider creates a provider over stdin/stdout.
func NewConsoleProvider() *ConsoleProvider {
	return &ConsoleProvider{In: os.Stdin, Out: os.Stdout}
}

func (p *ConsoleProvider) RequestInputs(req schema.InputRequest) (map[string]string, error) {
	fmt.Fprintln(p.Out, "\nInput required")
	fmt.Fprintln(p.Out, "Step:", req.Step)
	fmt.Fprintln(p.Out, "Task:", req.Task)
	if req.Notes != "" {
		fmt.Fprintln(p.Out, "Notes:", req.Notes)
	}

	reader := bufio.NewReader(p.In)
	values := make(map[string]string)
	for _, field := range req.Fields {
		fmt.Fprintf(p.Out, "Provide %s: ", field)
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("read input for %s: %w", field, err)
		}
		if v := strings.TrimSpace(line); v != "" {
			values[field] = v
		}
	}
	return values, nil
}

// FromEnv selects the provider: HUMAN_INPUT_MODE "manual" prompts on the
// console, anything else uses environment defaults.
func FromEnv() Provider {
	if strings.ToLower(os.Getenv("HUMAN_INPUT_MODE")) == "manual" {
		return NewConsoleProvider()
	}
	return AutoProvider{}
}
