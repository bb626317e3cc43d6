// Package graphmodel defines the persisted entities of the code graph:
// File, Symbol, Reference, Call, CodeChunk, AstNode, CfgBlock and the
// typed edges between them (§3). These are plain, flat, id-keyed
// records — no pointer cycles — so that any store backend satisfying
// the Graph Store Contract (§6) can persist them as rows or buckets.
package graphmodel

import "fmt"

// Language is the closed set of tags the Language Dispatcher produces (§4.2).
type Language string

const (
	LangRust       Language = "rust"
	LangPython     Language = "python"
	LangC          Language = "c"
	LangCpp        Language = "cpp"
	LangJava       Language = "java"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
)

// SymbolKind is the closed set of symbol kinds (§3).
type SymbolKind string

const (
	KindFunction  SymbolKind = "Function"
	KindMethod    SymbolKind = "Method"
	KindClass     SymbolKind = "Class"
	KindInterface SymbolKind = "Interface"
	KindEnum      SymbolKind = "Enum"
	KindModule    SymbolKind = "Module"
	KindUnion     SymbolKind = "Union"
	KindNamespace SymbolKind = "Namespace"
	KindTypeAlias SymbolKind = "TypeAlias"
	KindUnknown   SymbolKind = "Unknown"
)

// Normalized returns the lowercase short tag used as kind_normalized.
func (k SymbolKind) Normalized() string {
	switch k {
	case KindFunction:
		return "func"
	case KindMethod:
		return "method"
	case KindClass:
		return "class"
	case KindInterface:
		return "iface"
	case KindEnum:
		return "enum"
	case KindModule:
		return "module"
	case KindUnion:
		return "union"
	case KindNamespace:
		return "ns"
	case KindTypeAlias:
		return "alias"
	default:
		return "unknown"
	}
}

// Span is a half-open byte range [Start, End) with the 1-indexed
// line / 0-indexed column positions mandated by §4.5.
type Span struct {
	ByteStart int
	ByteEnd   int
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

func (s Span) Len() int { return s.ByteEnd - s.ByteStart }

// File is the top-level owning entity for a workspace-relative path (§3).
type File struct {
	Path           string // workspace-relative, UTF-8, forward-slash normalized
	ContentHash    string // hex SHA-256 of file bytes
	LastIndexedAt  int64  // seconds since epoch
	LastModifiedAt int64  // fs mtime at index time, seconds since epoch
}

// Symbol is a single named (or anonymous) declaration (§3).
type Symbol struct {
	SymbolID       string // 32 hex chars, BLAKE3-128
	File           string
	Language       Language
	Kind           SymbolKind
	CanonicalFQN   string
	DisplayFQN     string
	Name           string
	Span           Span
}

// CanonicalFQNFor builds the canonical_fqn per §4.5:
// "{root_relative_file}::{kind} {display_fqn}".
func CanonicalFQNFor(file string, kind SymbolKind, displayFQN string) string {
	return fmt.Sprintf("%s::%s %s", file, kind, displayFQN)
}

// Reference is a resolved-or-not name lookup at a call-free use site (§3).
type Reference struct {
	ID         uint64 // store-assigned identity, stable within one reconcile generation
	File       string
	Span       Span
	Name       string
	TargetID   string // resolved Symbol.SymbolID, empty if unresolved
	Ambiguous  bool
	Candidates []string // candidate Symbol.SymbolID values when Ambiguous
}

// Call is a call-expression fact linking a caller symbol to a (possibly
// unresolved) callee symbol (§3).
type Call struct {
	ID         uint64
	CallerID   string
	CalleeID   string // empty if unresolved
	File       string
	Span       Span
	Ambiguous  bool
	Candidates []string
}

// CodeChunk stores verbatim, boundary-safe source text for one symbol span (§4.8).
type CodeChunk struct {
	File        string
	Span        Span
	Content     string
	ContentHash string // hex SHA-256, the durable dedup key (§4.8)
	FastHash    uint64 // xxhash of Content, a cheap pre-filter before the SHA-256 comparison
	SymbolName  string
	SymbolKind  SymbolKind
	CreatedAt   int64
}

// AstNode is one node of the per-file structural forest (§4.7).
type AstNode struct {
	ID       uint64
	ParentID uint64 // 0 for the per-file root
	File     string
	Kind     string
	Span     Span
}

// CfgBlock is one basic block of a function's control-flow graph (§4.7).
type CfgBlock struct {
	OwningSymbolID string
	BlockIndex     int
	Successors     []int
}

// FileMetrics and SymbolMetrics are the side records described in §3.
type FileMetrics struct {
	File       string
	LOC        int
	SymbolsN   int
	Complexity int
}

type SymbolMetrics struct {
	SymbolID   string
	FanIn      int
	FanOut     int
	LOC        int
	Complexity int
}

// ExecutionLogEntry records one pipeline run (scan, watch flush, single
// reconcile) for the Freshness & Execution Log component (§3, SPEC_FULL §Supplements).
type ExecutionLogEntry struct {
	ExecutionID string
	Args        string
	Root        string
	DB          string
	StartedAt   int64
	EndedAt     int64
	Error       string
	FilesTotal  int
	FilesOK     int
	FilesFailed int
}

// Edge types (§3 "Edges").
type EdgeType string

const (
	EdgeDefines    EdgeType = "DEFINES"    // File -> Symbol
	EdgeReferences EdgeType = "REFERENCES" // Reference -> Symbol
	EdgeCaller     EdgeType = "CALLER"     // Symbol -> Call
	EdgeCalls      EdgeType = "CALLS"      // Call -> Symbol
)

// NodeKind identifies which entity table a graph node id belongs to,
// used by the abstract node operations in the Graph Store Contract (§6).
type NodeKind string

const (
	NodeFile      NodeKind = "file"
	NodeSymbol    NodeKind = "symbol"
	NodeReference NodeKind = "reference"
	NodeCall      NodeKind = "call"
)

// Direction for edge traversal queries (§4.12).
type Direction string

const (
	DirIn  Direction = "in"
	DirOut Direction = "out"
)
