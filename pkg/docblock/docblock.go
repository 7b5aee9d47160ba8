// Package docblock parses PHP doc-comments into the structured model.DocBlock form.
package docblock

import (
	"strings"

	"phpls/pkg/model"
)

// Parse parses a full doc-comment, including its /** and */ delimiters, into
// a DocBlock. Malformed tags are dropped individually; the rest of the block
// still parses.
func Parse(comment string) *model.DocBlock {
	doc := &model.DocBlock{}
	lines := stripMarkers(comment)

	var summary []string
	inSummary := true

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if inSummary && len(summary) > 0 {
				inSummary = false
			}
			continue
		}

		if strings.HasPrefix(trimmed, "@") {
			inSummary = false
			parseTag(trimmed, doc)
			continue
		}
		if inSummary {
			summary = append(summary, trimmed)
		}
	}

	if len(summary) > 0 {
		doc.Summary = strings.Join(summary, " ")
	}
	return doc
}

// stripMarkers removes /**, */, and leading * decoration from each line,
// returning the remaining lines in order, blank ones included so Parse can
// end the summary at the first blank line.
func stripMarkers(comment string) []string {
	var out []string
	for _, line := range strings.Split(comment, "\n") {
		trimmed := strings.TrimSpace(line)
		var stripped string
		switch {
		case strings.HasPrefix(trimmed, "/**"):
			stripped = strings.TrimSpace(strings.TrimPrefix(trimmed, "/**"))
		case strings.HasPrefix(trimmed, "*/"):
			continue
		case strings.HasPrefix(trimmed, "*"):
			stripped = strings.TrimLeft(strings.TrimPrefix(trimmed, "*"), " \t")
		default:
			stripped = trimmed
		}
		stripped = strings.TrimSuffix(stripped, "*/")
		stripped = strings.TrimRight(stripped, " \t")
		out = append(out, stripped)
	}
	return out
}

func parseTag(line string, doc *model.DocBlock) {
	switch {
	case cutTag(line, "@param", &line):
		parseParamTag(strings.TrimSpace(line), doc)
	case cutTag(line, "@return", &line):
		if rest := strings.TrimSpace(line); rest != "" {
			t := ParseTypeString(firstWord(rest))
			doc.ReturnType = &t
		}
	case cutTag(line, "@var", &line):
		rest := strings.TrimSpace(line)
		if rest == "" {
			return
		}
		fields := strings.Fields(rest)
		// @var Type [$name] -- an explicitly named variable narrows the tag
		// to that assignment target (see pkg/resolve).
		if len(fields) >= 2 && strings.HasPrefix(fields[1], "$") {
			doc.VarName = strings.TrimPrefix(fields[1], "$")
		}
		t := ParseTypeString(fields[0])
		doc.VarType = &t
	case cutTag(line, "@throws", &line):
		if rest := strings.TrimSpace(line); rest != "" {
			doc.Throws = append(doc.Throws, ParseTypeString(firstWord(rest)))
		}
	case cutTag(line, "@deprecated", &line):
		rest := strings.TrimSpace(line)
		doc.Deprecated = true
		if rest == "" {
			doc.DeprecatedText = "Deprecated"
		} else {
			doc.DeprecatedText = rest
		}
	case cutTag(line, "@property-read", &line):
		parsePropertyTag(strings.TrimSpace(line), model.AccessRead, doc)
	case cutTag(line, "@property-write", &line):
		parsePropertyTag(strings.TrimSpace(line), model.AccessWrite, doc)
	case cutTag(line, "@property", &line):
		parsePropertyTag(strings.TrimSpace(line), model.AccessReadWrite, doc)
	case cutTag(line, "@method", &line):
		parseMethodTag(strings.TrimSpace(line), doc)
	}
}

// cutTag reports whether line starts with tag and, if so, rewrites *rest to
// the remainder. The longer property-read/property-write prefixes must be
// tried before the bare @property prefix by the caller's switch order.
func cutTag(line, tag string, rest *string) bool {
	if !strings.HasPrefix(line, tag) {
		return false
	}
	after := line[len(tag):]
	if after != "" && after[0] != ' ' && after[0] != '\t' {
		return false // e.g. "@property-read" must not match the "@property" case body
	}
	*rest = after
	return true
}

func parseParamTag(rest string, doc *model.DocBlock) {
	fields := splitN(rest, 3)
	if len(fields) == 0 {
		return
	}

	var typeStr, nameStr, desc string
	switch {
	case strings.HasPrefix(fields[0], "$"):
		nameStr = fields[0]
		if len(fields) > 1 {
			desc = fields[1]
		}
	case len(fields) >= 2 && strings.HasPrefix(fields[1], "$"):
		typeStr = fields[0]
		nameStr = fields[1]
		if len(fields) > 2 {
			desc = fields[2]
		}
	default:
		return
	}

	param := model.DocParam{
		Name:        strings.TrimPrefix(nameStr, "$"),
		Description: desc,
	}
	if typeStr != "" {
		t := ParseTypeString(typeStr)
		param.Type = &t
	}
	doc.Params = append(doc.Params, param)
}

func parsePropertyTag(rest string, access model.PropertyAccess, doc *model.DocBlock) {
	fields := splitN(rest, 3)
	if len(fields) < 2 {
		return
	}
	t := ParseTypeString(fields[0])
	desc := ""
	if len(fields) > 2 {
		desc = fields[2]
	}
	doc.Properties = append(doc.Properties, model.DocProperty{
		Name:        strings.TrimPrefix(fields[1], "$"),
		Type:        &t,
		Access:      access,
		Description: desc,
	})
}

func parseMethodTag(rest string, doc *model.DocBlock) {
	isStatic := false
	if r, ok := cutPrefix(rest, "static"); ok {
		isStatic = true
		rest = strings.TrimLeft(r, " \t")
	}

	parenPos := strings.IndexByte(rest, '(')
	if parenPos < 0 {
		return
	}
	beforeParen := strings.TrimSpace(rest[:parenPos])
	if beforeParen == "" {
		return
	}

	var returnType *model.TypeExpr
	name := beforeParen
	if idx := strings.LastIndexAny(beforeParen, " \t"); idx >= 0 {
		t := ParseTypeString(beforeParen[:idx])
		returnType = &t
		name = strings.TrimSpace(beforeParen[idx+1:])
	}

	doc.Methods = append(doc.Methods, model.DocMethod{
		Name:       name,
		ReturnType: returnType,
		Static:     isStatic,
	})
}

func cutPrefix(s, prefix string) (string, bool) {
	if !strings.HasPrefix(s, prefix) {
		return s, false
	}
	return s[len(prefix):], true
}

// ParseTypeString parses a docblock type expression: unions joined by `|`,
// intersections joined by `&` (but not the by-ref marker `&$var`), a leading
// `?` for nullable, and the special lowercase forms.
func ParseTypeString(s string) model.TypeExpr {
	s = strings.TrimSpace(s)

	if strings.Contains(s, "|") {
		parts := splitType(s, '|')
		exprs := make([]model.TypeExpr, len(parts))
		for i, p := range parts {
			exprs[i] = ParseTypeString(p)
		}
		return model.TypeExpr{Kind: model.TypeUnion, Parts: exprs}
	}

	if strings.Contains(s, "&") && !strings.Contains(s, "&$") {
		parts := splitType(s, '&')
		exprs := make([]model.TypeExpr, len(parts))
		for i, p := range parts {
			exprs[i] = ParseTypeString(p)
		}
		return model.TypeExpr{Kind: model.TypeIntersection, Parts: exprs}
	}

	if inner, ok := cutPrefix(s, "?"); ok {
		of := ParseTypeString(inner)
		return model.TypeExpr{Kind: model.TypeNullable, Of: &of}
	}

	switch strings.ToLower(s) {
	case "void":
		return model.TypeExpr{Kind: model.TypeVoid}
	case "never":
		return model.TypeExpr{Kind: model.TypeNever}
	case "mixed":
		return model.TypeExpr{Kind: model.TypeMixed}
	case "self":
		return model.TypeExpr{Kind: model.TypeSelf}
	case "static":
		return model.TypeExpr{Kind: model.TypeStatic}
	case "parent":
		return model.TypeExpr{Kind: model.TypeParent}
	default:
		return model.TypeExpr{Kind: model.TypeNamed, Name: s}
	}
}

func splitType(s string, sep byte) []string {
	parts := strings.Split(s, string(sep))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return s
	}
	return fields[0]
}

// splitN splits on whitespace into at most n fields, the last field
// retaining any embedded whitespace (mirroring splitn(3, char::is_whitespace)).
func splitN(s string, n int) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out []string
	for len(out) < n-1 {
		idx := strings.IndexAny(s, " \t")
		if idx < 0 {
			break
		}
		out = append(out, s[:idx])
		s = strings.TrimLeft(s[idx:], " \t")
		if s == "" {
			return out
		}
	}
	out = append(out, s)
	return out
}
