package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestSpanTree(t *testing.T) {
	ctx, root := Start(context.Background(), "search", "req-1")
	cctx, parse := Start(ctx, "parse", "ignored")
	if parse.TraceID != "req-1" {
		t.Fatalf("child trace id = %q", parse.TraceID)
	}
	if FromContext(cctx) != parse || FromContext(ctx) != root {
		t.Fatal("context does not carry the current span")
	}
	parse.SetAttr("terms", 2)
	parse.End(nil)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	root.End(logger)

	out := buf.String()
	if strings.Count(out, "msg=span") != 2 {
		t.Fatalf("log = %s", out)
	}
	if !strings.Contains(out, "span=parse") || !strings.Contains(out, "terms=2") || !strings.Contains(out, "depth=1") {
		t.Fatalf("log = %s", out)
	}
	if len(root.Children()) != 1 {
		t.Fatalf("children = %d", len(root.Children()))
	}
}

func TestChildEndDoesNotLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx, _ := Start(context.Background(), "build", "b")
	_, child := Start(ctx, "finalize", "")
	child.End(logger)
	if buf.Len() != 0 {
		t.Fatalf("child logged: %s", buf.String())
	}
}
