// Package pkg provides the core libraries for the larder ontology compiler.
//
// # Overview
//
// Larder compiles a git-authored food ontology into canonical, content-hashed
// identity records. The pkg directory is organized into four main areas:
//
//  1. [ontology] - Domain types and the definition registry (taxa, parts, transforms, families)
//  2. [source], [lint] - Source tree loading and validation
//  3. [substrate], [expand], [canonical] - Compilation (closures, candidate expansion, hashing)
//  4. [stage], [pack], [curation] - Orchestration, the relational store, and the proposal API
//
// # Architecture
//
// The typical data flow through larder:
//
//	Ontology source tree (NDJSON + TOML)
//	         ↓
//	    [lint] package (schema and cross-reference validation)
//	         ↓
//	    [substrate] package (closure tables + legal taxon-part pairs)
//	         ↓
//	    [expand] package (seeds and family templates → candidates)
//	         ↓
//	    [canonical] package (canonical step serialization + content hashing)
//	         ↓
//	    [pack] package (relational SQLite store)
//
// The [stage] package drives those steps as fingerprint-cached, contract-checked
// pipeline stages; [curation] replays the same path for external proposals.
package pkg
