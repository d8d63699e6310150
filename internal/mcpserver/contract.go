package mcpserver

import (
	"fmt"
	"strings"

	"github.com/starford/doclife/internal/lifecycle"
	"github.com/starford/doclife/internal/naming"
	"github.com/starford/doclife/internal/policy"
)

// PolicyContract renders the documentation policy for agent contributors
// from the active rules and layout.
func PolicyContract(rules policy.Rules, layout lifecycle.Layout) string {
	instance, living := naming.Types()
	code := func(xs []string) string {
		out := make([]string, len(xs))
		for i, x := range xs {
			out[i] = "`" + x + "`"
		}
		return strings.Join(out, ", ")
	}

	var b strings.Builder
	b.WriteString("# Documentation Policy\n\n")

	b.WriteString("## Categories\n\n")
	b.WriteString("Every Markdown file is **exempt** or **timestamped**.\n\n")
	b.WriteString("- **Exempt** documents are living: edit them in place and keep their header current.\n")
	fmt.Fprintf(&b, "  - names: %s\n", code(rules.ExemptNames))
	fmt.Fprintf(&b, "  - master documents: %s\n", code(rules.MasterNames))
	fmt.Fprintf(&b, "  - prefixes: %s\n", code(rules.ExemptPrefixes))
	if len(rules.ExemptGlobs) > 0 {
		fmt.Fprintf(&b, "  - patterns: %s\n", code(rules.ExemptGlobs))
	}
	if len(rules.ConditionalGlobs) > 0 {
		fmt.Fprintf(&b, "  - %s, only while it is the only one in its directory\n", code(rules.ConditionalGlobs))
	}
	b.WriteString("- **Timestamped** documents are everything else. They are never edited: ")
	b.WriteString("write a successor with a new stamp (`supersede_document`) and the original is archived.\n\n")

	b.WriteString("## Names\n\n")
	b.WriteString("Timestamped: `Type-Description-YYMMDD-HHMM.md`, e.g. `Status-LearnApp-251017-1430.md`.\n")
	b.WriteString("Living: `Type-Description.md`, e.g. `Protocol-Release.md`.\n\n")
	fmt.Fprintf(&b, "- instance types: %s\n", code(instance))
	fmt.Fprintf(&b, "- living types: %s\n", code(living))
	b.WriteString("- the description is hyphenated words, each starting with a capital\n")
	b.WriteString("- a name without a stamp is *missing* one; a stamp in any other shape is *malformed*\n\n")

	b.WriteString("## Header\n\n")
	b.WriteString("Every document starts with this YAML block, keys in this order:\n\n")
	b.WriteString("```yaml\n---\nfilename: Status-LearnApp-251017-1430.md\ncreated: 2025-10-17 14:30\n")
	b.WriteString("author: Jane Doe\npurpose: Track the LearnApp fix wave\nlast_modified: 2025-10-17 14:30\n")
	b.WriteString("version: 1\nchangelog:\n  - date: 2025-10-17 14:30\n    version: 1\n    note: Initial version\n---\n```\n\n")
	b.WriteString("`filename` matches the file. Each content change moves `last_modified`, bumps `version` ")
	b.WriteString("and appends a changelog entry carrying the new version.\n\n")

	b.WriteString("## Locations\n\n")
	fmt.Fprintf(&b, "- `%s/`: current instance documents\n", layout.ActiveDir)
	fmt.Fprintf(&b, "- `%s/`: superseded or aged-out instance documents, mirroring `%s/`\n", layout.ArchiveDir, layout.ActiveDir)
	fmt.Fprintf(&b, "- `%s/`: living instructions only; timestamped documents here are misplaced\n", layout.InstructionsDir)
	fmt.Fprintf(&b, "- `%s/`: per-module manuals\n", layout.ModuleDocsDir)
	return b.String()
}
