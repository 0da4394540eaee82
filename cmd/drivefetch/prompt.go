package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ethangolledge/doc-query/internal/orchestrator"
)

// terminalPrompter asks the operator on a line-oriented terminal.
type terminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newTerminalPrompter(in io.Reader, out io.Writer) *terminalPrompter {
	return &terminalPrompter{in: bufio.NewReader(in), out: out}
}

// readLine returns the next input line without its newline. EOF with nothing
// read is orchestrator.ErrNoAnswer.
func (p *terminalPrompter) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := p.in.ReadString('\n')
	if err == io.EOF && line != "" {
		err = nil
	}
	if err == io.EOF {
		return "", orchestrator.ErrNoAnswer
	}
	if err != nil {
		return "", fmt.Errorf("read answer: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *terminalPrompter) yes(ctx context.Context) (bool, error) {
	line, err := p.readLine(ctx)
	if err != nil {
		return false, err
	}
	return strings.ToLower(strings.TrimSpace(line)) == "y", nil
}

func (p *terminalPrompter) SelectTypes(ctx context.Context, types []string) (orchestrator.Selection, error) {
	fmt.Fprintln(p.out, "\nFile types found:")
	for _, t := range types {
		fmt.Fprintf(p.out, "  %s\n", t)
	}
	fmt.Fprintln(p.out, "\nPlease input the file types you would like to download (type 'all', 'none', or comma-separated):")

	line, err := p.readLine(ctx)
	if err != nil {
		return orchestrator.Selection{}, err
	}
	return orchestrator.ParseSelection(line), nil
}

func (p *terminalPrompter) ConfirmUnsupported(ctx context.Context, unsupported []string) (bool, error) {
	fmt.Fprintf(p.out, "\nWarning: The following types are not supported: %s\n", orchestrator.JoinWithAnd(unsupported))
	fmt.Fprint(p.out, "Continue with supported types only? (y/n): ")
	return p.yes(ctx)
}

func (p *terminalPrompter) ConfirmRetry(ctx context.Context, failed int) (bool, error) {
	fmt.Fprintf(p.out, "\nDownload process finished. Total Errors: %d\n", failed)
	fmt.Fprintln(p.out, "Shall we proceed with a retry of the rows with errors? (y/n):")
	return p.yes(ctx)
}

func (p *terminalPrompter) Notify(msg string) {
	fmt.Fprintln(p.out, msg)
}

// scriptedPrompter answers from flags for unattended runs. The selection is
// given once; being asked again means it matched nothing.
type scriptedPrompter struct {
	selection         orchestrator.Selection
	acceptUnsupported bool
	retry             bool
	out               io.Writer
	asked             bool
}

func (p *scriptedPrompter) SelectTypes(ctx context.Context, types []string) (orchestrator.Selection, error) {
	if p.asked {
		return orchestrator.Selection{}, fmt.Errorf("selection matched no downloadable files: %w", orchestrator.ErrNoAnswer)
	}
	p.asked = true
	return p.selection, nil
}

func (p *scriptedPrompter) ConfirmUnsupported(ctx context.Context, unsupported []string) (bool, error) {
	fmt.Fprintf(p.out, "Warning: The following types are not supported: %s\n", orchestrator.JoinWithAnd(unsupported))
	return p.acceptUnsupported, nil
}

func (p *scriptedPrompter) ConfirmRetry(ctx context.Context, failed int) (bool, error) {
	fmt.Fprintf(p.out, "Download process finished. Total Errors: %d\n", failed)
	return p.retry, nil
}

func (p *scriptedPrompter) Notify(msg string) {
	fmt.Fprintln(p.out, msg)
}
