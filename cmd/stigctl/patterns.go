package main

import "github.com/migrantcolony/stigctl/internal/effector"

// defaultPatterns is the built-in migration-pattern set used when no
// project-specific pattern file is wired in. It covers two representative
// triggers per supported grammar (Go, Python, JavaScript) plus one
// textual-only probe for languages the detector only ever scans as plain text.
func defaultPatterns() []effector.Pattern {
	return []effector.Pattern{
		{
			Name:     "go-deprecated-ioutil",
			NodeType: "import_spec",
			Literal:  "io/ioutil",
		},
		{
			Name:     "go-context-todo",
			NodeType: "call_expression",
			Literal:  "context.TODO",
		},
		{
			Name:     "py-deprecated-imp",
			NodeType: "import_statement",
			Literal:  "imp",
		},
		{
			Name:     "py-print-statement",
			NodeType: "call",
			Literal:  "print",
		},
		{
			Name:     "js-var-declaration",
			NodeType: "variable_declaration",
			Literal:  "var ",
		},
		{
			Name:     "js-commonjs-require",
			NodeType: "call_expression",
			Literal:  "require(",
		},
		{
			Name:    "legacy-config-marker",
			Literal: "TODO(migrate)",
		},
	}
}
