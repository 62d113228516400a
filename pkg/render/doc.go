// Package render draws the ontology's structural graphs.
//
// # Overview
//
// Three graph kinds are supported:
//
//   - Taxa: the taxonomic tree, parent edges between taxon nodes
//   - Parts: the part hierarchy, derived parts linked to their parents
//   - Stages: the build pipeline's stage dependency graph
//
// Each kind converts to Graphviz DOT via [TaxaDOT], [PartsDOT], or
// [StagesDOT]; [RenderSVG] turns any DOT string into an SVG using the
// embedded Graphviz engine.
//
//	dot := render.TaxaDOT(taxa)
//	svg, err := render.RenderSVG(ctx, dot)
package render
