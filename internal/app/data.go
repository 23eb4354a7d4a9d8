package app

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/stampgo/runtime"
)

// loadVars reads an HCL file of top-level attributes into the bound value
// set templates render with. Attribute expressions must be constant; they
// have no scope to reference.
func loadVars(path string) (runtime.Vars, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse data file %s: %w", path, diags)
	}

	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode data file %s: %w", path, diags)
	}

	vars := make(runtime.Vars, len(attrs))
	for name, attr := range attrs {
		v, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to evaluate data value %q: %w", name, diags)
		}
		vars[name] = v
	}
	return vars, nil
}
