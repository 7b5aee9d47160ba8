package diagnostics

import (
	sitter "github.com/smacker/go-tree-sitter"

	"phpls/pkg/model"
)

// SyntaxErrors walks tree and reports every ERROR and MISSING node
// tree-sitter's error-recovery inserted while parsing.
func SyntaxErrors(tree *sitter.Tree) []model.Diagnostic {
	var diags []model.Diagnostic
	collectErrors(tree.RootNode(), &diags)
	return diags
}

func collectErrors(node *sitter.Node, diags *[]model.Diagnostic) {
	switch {
	case node.IsError():
		*diags = append(*diags, model.Diagnostic{
			Range:    nodeRange(node),
			Severity: model.SeverityError,
			Code:     model.DiagSyntaxError,
			Message:  "Syntax error",
		})
	case node.IsMissing():
		*diags = append(*diags, model.Diagnostic{
			Range:    nodeRange(node),
			Severity: model.SeverityError,
			Code:     model.DiagSyntaxMissing,
			Message:  "Missing " + node.Type(),
		})
	}

	count := int(node.ChildCount())
	for i := 0; i < count; i++ {
		collectErrors(node.Child(i), diags)
	}
}

func nodeRange(node *sitter.Node) model.Range {
	start := node.StartPoint()
	end := node.EndPoint()
	return model.Range{
		StartLine: int(start.Row),
		StartCol:  int(start.Column),
		EndLine:   int(end.Row),
		EndCol:    int(end.Column),
	}
}
