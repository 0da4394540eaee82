package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ethangolledge/doc-query/internal/orchestrator"
)

func TestTerminalPrompterSelectTypes(t *testing.T) {
	var out bytes.Buffer
	p := newTerminalPrompter(strings.NewReader("text/plain, application/pdf\n"), &out)

	sel, err := p.SelectTypes(context.Background(), []string{"application/pdf", "text/plain"})
	if err != nil {
		t.Fatalf("SelectTypes: %v", err)
	}
	if sel.Kind != orchestrator.SelectExplicit {
		t.Errorf("kind = %v, want explicit", sel.Kind)
	}
	if got := strings.Join(sel.Types, ","); got != "text/plain,application/pdf" {
		t.Errorf("types = %s", got)
	}
	if !strings.Contains(out.String(), "  application/pdf\n") {
		t.Errorf("types not listed:\n%s", out.String())
	}
}

func TestTerminalPrompterAll(t *testing.T) {
	p := newTerminalPrompter(strings.NewReader("ALL"), &bytes.Buffer{})

	sel, err := p.SelectTypes(context.Background(), nil)
	if err != nil {
		t.Fatalf("SelectTypes: %v", err)
	}
	if sel.Kind != orchestrator.SelectAll {
		t.Errorf("kind = %v, want all", sel.Kind)
	}
}

func TestTerminalPrompterConfirm(t *testing.T) {
	var out bytes.Buffer
	p := newTerminalPrompter(strings.NewReader("Y\nn\n"), &out)

	ok, err := p.ConfirmUnsupported(context.Background(), []string{"a/x", "b/y"})
	if err != nil || !ok {
		t.Errorf("ConfirmUnsupported = %v, %v; want true", ok, err)
	}
	if !strings.Contains(out.String(), "not supported: a/x and b/y") {
		t.Errorf("warning missing:\n%s", out.String())
	}

	ok, err = p.ConfirmRetry(context.Background(), 3)
	if err != nil || ok {
		t.Errorf("ConfirmRetry = %v, %v; want false", ok, err)
	}
	if !strings.Contains(out.String(), "Total Errors: 3") {
		t.Errorf("error count missing:\n%s", out.String())
	}
}

func TestTerminalPrompterEOF(t *testing.T) {
	p := newTerminalPrompter(strings.NewReader(""), &bytes.Buffer{})

	_, err := p.ConfirmRetry(context.Background(), 1)
	if !errors.Is(err, orchestrator.ErrNoAnswer) {
		t.Errorf("err = %v, want ErrNoAnswer", err)
	}
}

func TestTerminalPrompterCancelled(t *testing.T) {
	p := newTerminalPrompter(strings.NewReader("y\n"), &bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.ConfirmRetry(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestScriptedPrompterAnswersOnce(t *testing.T) {
	p := &scriptedPrompter{
		selection: orchestrator.ParseSelection("text/plain"),
		retry:     true,
		out:       &bytes.Buffer{},
	}
	ctx := context.Background()

	if _, err := p.SelectTypes(ctx, nil); err != nil {
		t.Fatalf("first SelectTypes: %v", err)
	}
	if _, err := p.SelectTypes(ctx, nil); !errors.Is(err, orchestrator.ErrNoAnswer) {
		t.Errorf("second SelectTypes err = %v, want ErrNoAnswer", err)
	}
	if ok, _ := p.ConfirmRetry(ctx, 2); !ok {
		t.Error("ConfirmRetry = false, want true")
	}
	if ok, _ := p.ConfirmUnsupported(ctx, []string{"a/x"}); ok {
		t.Error("ConfirmUnsupported = true, want false")
	}
}
