package parser

import (
	"fmt"
	"strings"
)

// Dump renders the AST as an indented listing for the `ast` debug print
// level.
func Dump(root *Root) string {
	var b strings.Builder
	fmt.Fprintf(&b, "template %s\n", root.Template.Name)
	dumpNodes(&b, root.Nodes, 1)
	return b.String()
}

func dumpNodes(b *strings.Builder, nodes []Node, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		switch node := n.(type) {
		case *Literal:
			fmt.Fprintf(b, "%sliteral %q\n", indent, node.Text)
		case *RawBlock:
			fmt.Fprintf(b, "%sraw-block %q\n", indent, node.Text)
		case *Expr:
			form := "expr"
			if node.Raw {
				form = "raw-expr"
			}
			fmt.Fprintf(b, "%s%s %s\n", indent, form, node.Src)
		case *Block:
			fmt.Fprintf(b, "%sblock #%s %s\n", indent, node.Helper, node.Arg)
			dumpNodes(b, node.Body, depth+1)
			if node.HasElse {
				fmt.Fprintf(b, "%selse\n", indent)
				dumpNodes(b, node.Else, depth+1)
			}
		case *Partial:
			parts := make([]string, 0, len(node.Params))
			for _, p := range node.Params {
				parts = append(parts, p.Key+"="+p.Src)
			}
			fmt.Fprintf(b, "%spartial >%s %s\n", indent, node.Name, strings.Join(parts, " "))
		}
	}
}
