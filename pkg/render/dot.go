package render

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/larderlab/larder/pkg/ontology"
	"github.com/larderlab/larder/pkg/stage"
)

// Graph kinds accepted by the CLI.
const (
	KindTaxa   = "taxa"
	KindParts  = "parts"
	KindStages = "stages"
)

func header(buf *bytes.Buffer) {
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")
}

// TaxaDOT converts the taxonomic tree to Graphviz DOT. Deprecated taxa are
// drawn dashed and grey; edges run parent -> child.
func TaxaDOT(taxa []ontology.Taxon) string {
	sorted := make([]ontology.Taxon, len(taxa))
	copy(sorted, taxa)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var buf bytes.Buffer
	header(&buf)

	for _, t := range sorted {
		label := fmt.Sprintf("%s\n%s", t.DisplayName, t.Rank)
		attrs := []string{fmt.Sprintf("label=%q", label)}
		if t.Status == ontology.TaxonDeprecated {
			attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey")
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", t.ID, strings.Join(attrs, ", "))
	}
	buf.WriteString("\n")
	for _, t := range sorted {
		if t.Parent != "" {
			fmt.Fprintf(&buf, "  %q -> %q;\n", t.Parent, t.ID)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// PartsDOT converts the part hierarchy to Graphviz DOT. Derived parts are
// tinted to distinguish them from biological ones.
func PartsDOT(parts []ontology.Part) string {
	sorted := make([]ontology.Part, len(parts))
	copy(sorted, parts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var buf bytes.Buffer
	header(&buf)

	for _, p := range sorted {
		label := fmt.Sprintf("%s\n%s", p.DisplayName, p.Kind)
		attrs := []string{fmt.Sprintf("label=%q", label)}
		if p.Kind == ontology.PartKindDerived {
			attrs = append(attrs, "fillcolor=lightyellow")
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", p.ID, strings.Join(attrs, ", "))
	}
	buf.WriteString("\n")
	for _, p := range sorted {
		if p.Parent != "" {
			fmt.Fprintf(&buf, "  %q -> %q;\n", p.Parent, p.ID)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// StagesDOT converts the pipeline's declared dependencies to Graphviz DOT.
func StagesDOT(stages []stage.Descriptor) string {
	var buf bytes.Buffer
	header(&buf)

	for _, d := range stages {
		fmt.Fprintf(&buf, "  %q;\n", d.ID)
	}
	buf.WriteString("\n")
	for _, d := range stages {
		for _, dep := range d.DependsOn {
			fmt.Fprintf(&buf, "  %q -> %q;\n", dep, d.ID)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}
