package codegen

import (
	"fmt"
	"strings"

	"github.com/vk/stampgo/internal/hir"
	"github.com/vk/stampgo/internal/span"
)

// Error is a construct the selected backend cannot compile.
type Error struct {
	Template string
	Backend  string
	Span     span.Span
	Detail   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%s: %s backend: %s", e.Template, e.Span.Start, e.Backend, e.Detail)
}

// Listing renders a human-readable operation listing of the lowered unit,
// used by the `code` debug print level.
func Listing(unit *hir.Unit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "program %s (mode=%s)\n", unit.Template.Name, unit.Template.Mode)
	listNodes(&b, unit.Nodes, 1)
	for key, p := range unit.Partials {
		fmt.Fprintf(&b, "partial %s\n", key)
		listNodes(&b, p.Body, 1)
	}
	return b.String()
}

func listNodes(b *strings.Builder, nodes []hir.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		switch node := n.(type) {
		case *hir.LitRun:
			fmt.Fprintf(b, "%sWRITE %q\n", indent, clip(node.Text, 40))
		case *hir.Expr:
			fmt.Fprintf(b, "%sEVAL %s (escape=%s)\n", indent, node.Src, node.Escape)
		case *hir.If:
			fmt.Fprintf(b, "%sBRANCH %s\n", indent, node.CondSrc)
			listNodes(b, node.Then, depth+1)
			if len(node.Else) > 0 {
				fmt.Fprintf(b, "%sELSE\n", indent)
				listNodes(b, node.Else, depth+1)
			}
		case *hir.Each:
			fmt.Fprintf(b, "%sLOOP %s (%s, %s)\n", indent, node.IterSrc, node.ItemVar, node.IndexVar)
			listNodes(b, node.Body, depth+1)
			if len(node.Else) > 0 {
				fmt.Fprintf(b, "%sEMPTY\n", indent)
				listNodes(b, node.Else, depth+1)
			}
		case *hir.Partial:
			fmt.Fprintf(b, "%sCALL %s\n", indent, node.Key)
		}
	}
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// loc pre-renders a source location for render-time error messages.
func loc(template string, at span.Span) string {
	return fmt.Sprintf("%s:%s", template, at.Start)
}
