// Package langcap is the Language Dispatcher (§4.2): a closed map from
// file extension to language tag, and the per-language capability used
// throughout the pipeline (scope separator, symbol-bearing node kinds).
// Extension -> tag is the single source of truth; adding a language
// means adding an entry here plus a parser/extractor pairing in
// internal/parserpool and internal/extract.
package langcap

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/oldnordic/magellan/internal/graphmodel"
)

// Capability describes everything the pipeline needs to know about one
// language tag that is not itself the grammar or the extractor code.
type Capability struct {
	Language Language
	// ScopeSeparator joins FQN components for this language (§4.4).
	ScopeSeparator string
	// SymbolNodeKinds is the documented closed set of tree-sitter node
	// kinds that produce a Symbol for this language (§4.5).
	SymbolNodeKinds []string
	// ScopeNodeKinds are node kinds that push/pop a scope frame (§4.4):
	// modules, classes, namespaces, impls, package declarations.
	ScopeNodeKinds []string
	// GenericsInFQN records, per language, whether template/generic
	// parameters count as part of the name (SPEC_FULL Open Question 1).
	// No extractor reads it: canonical_fqn never includes generic
	// parameters, whatever this flag says.
	GenericsInFQN bool
	// CallNodeKinds are the grammar's call-expression node kinds (§4.6).
	CallNodeKinds []string
	// FunctionLikeKinds are the node kinds of function/method
	// declarations; the reconciler matches them (kind plus span) against
	// extracted symbols to build one CFG per function.
	FunctionLikeKinds []string
}

type Language = graphmodel.Language

var extToLang = map[string]Language{
	".rs":   graphmodel.LangRust,
	".py":   graphmodel.LangPython,
	".pyi":  graphmodel.LangPython,
	".c":    graphmodel.LangC,
	".h":    graphmodel.LangC,
	".cpp":  graphmodel.LangCpp,
	".cc":   graphmodel.LangCpp,
	".cxx":  graphmodel.LangCpp,
	".hpp":  graphmodel.LangCpp,
	".hh":   graphmodel.LangCpp,
	".hxx":  graphmodel.LangCpp,
	".java": graphmodel.LangJava,
	".js":   graphmodel.LangJavaScript,
	".jsx":  graphmodel.LangJavaScript,
	".mjs":  graphmodel.LangJavaScript,
	".cjs":  graphmodel.LangJavaScript,
	".ts":   graphmodel.LangTypeScript,
	".tsx":  graphmodel.LangTypeScript,
}

var capabilities = map[Language]Capability{
	graphmodel.LangRust: {
		Language:          graphmodel.LangRust,
		ScopeSeparator:    "::",
		SymbolNodeKinds:   []string{"function_item", "struct_item", "enum_item", "trait_item", "mod_item", "type_item"},
		ScopeNodeKinds:    []string{"mod_item", "impl_item", "trait_item"},
		GenericsInFQN:     true,
		CallNodeKinds:     []string{"call_expression"},
		FunctionLikeKinds: []string{"function_item"},
	},
	graphmodel.LangPython: {
		Language:          graphmodel.LangPython,
		ScopeSeparator:    ".",
		SymbolNodeKinds:   []string{"function_definition", "class_definition"},
		ScopeNodeKinds:    []string{"class_definition"},
		GenericsInFQN:     false,
		CallNodeKinds:     []string{"call"},
		FunctionLikeKinds: []string{"function_definition"},
	},
	graphmodel.LangC: {
		Language:          graphmodel.LangC,
		ScopeSeparator:    "::",
		SymbolNodeKinds:   []string{"function_definition", "struct_specifier", "enum_specifier", "type_definition"},
		ScopeNodeKinds:    nil,
		GenericsInFQN:     false,
		CallNodeKinds:     []string{"call_expression"},
		FunctionLikeKinds: []string{"function_definition"},
	},
	graphmodel.LangCpp: {
		Language:          graphmodel.LangCpp,
		ScopeSeparator:    "::",
		SymbolNodeKinds:   []string{"function_definition", "class_specifier", "struct_specifier", "namespace_definition", "enum_specifier"},
		ScopeNodeKinds:    []string{"namespace_definition", "class_specifier", "struct_specifier"},
		GenericsInFQN:     false,
		CallNodeKinds:     []string{"call_expression"},
		FunctionLikeKinds: []string{"function_definition"},
	},
	graphmodel.LangJava: {
		Language:          graphmodel.LangJava,
		ScopeSeparator:    ".",
		SymbolNodeKinds:   []string{"class_declaration", "interface_declaration", "enum_declaration", "method_declaration"},
		ScopeNodeKinds:    []string{"class_declaration", "interface_declaration", "enum_declaration"},
		GenericsInFQN:     true,
		CallNodeKinds:     []string{"method_invocation"},
		FunctionLikeKinds: []string{"method_declaration"},
	},
	graphmodel.LangJavaScript: {
		Language:          graphmodel.LangJavaScript,
		ScopeSeparator:    ".",
		SymbolNodeKinds:   []string{"function_declaration", "class_declaration", "method_definition"},
		ScopeNodeKinds:    []string{"class_declaration"},
		GenericsInFQN:     false,
		CallNodeKinds:     []string{"call_expression"},
		FunctionLikeKinds: []string{"function_declaration", "method_definition"},
	},
	graphmodel.LangTypeScript: {
		Language:          graphmodel.LangTypeScript,
		ScopeSeparator:    ".",
		SymbolNodeKinds:   []string{"function_declaration", "class_declaration", "interface_declaration", "method_definition", "type_alias_declaration", "enum_declaration"},
		ScopeNodeKinds:    []string{"class_declaration", "interface_declaration"},
		GenericsInFQN:     true,
		CallNodeKinds:     []string{"call_expression"},
		FunctionLikeKinds: []string{"function_declaration", "method_definition"},
	},
}

var mu sync.RWMutex

// Dispatch maps a file path to a language tag using its extension.
// Unknown extensions return ("", false): a non-error skip (§4.2).
func Dispatch(path string) (Language, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := extToLang[ext]
	return lang, ok
}

// For returns the capability object for a language tag.
func For(lang Language) (Capability, bool) {
	mu.RLock()
	defer mu.RUnlock()
	c, ok := capabilities[lang]
	return c, ok
}

// CapabilityOverride carries the subset of Capability fields a project's
// language-capability table (internal/config, TOML) may override. A zero
// value for any field leaves that field of the built-in capability
// untouched, so a project only needs to name what it is changing.
type CapabilityOverride struct {
	ScopeSeparator    string
	SymbolNodeKinds   []string
	ScopeNodeKinds    []string
	CallNodeKinds     []string
	FunctionLikeKinds []string
	GenericsInFQN     *bool
}

// Override applies a project-local capability override on top of the
// built-in table for lang. Unknown language tags are silently ignored:
// the closed tag set (§4.2) is never extended by configuration, only
// tuned. The whole update is applied under the write lock, so For never
// sees a half-applied override; an override applied mid-run affects
// only lookups made after it returns.
func Override(lang Language, o CapabilityOverride) {
	mu.Lock()
	defer mu.Unlock()
	c, ok := capabilities[lang]
	if !ok {
		return
	}
	if o.ScopeSeparator != "" {
		c.ScopeSeparator = o.ScopeSeparator
	}
	if len(o.SymbolNodeKinds) > 0 {
		c.SymbolNodeKinds = o.SymbolNodeKinds
	}
	if len(o.ScopeNodeKinds) > 0 {
		c.ScopeNodeKinds = o.ScopeNodeKinds
	}
	if len(o.CallNodeKinds) > 0 {
		c.CallNodeKinds = o.CallNodeKinds
	}
	if len(o.FunctionLikeKinds) > 0 {
		c.FunctionLikeKinds = o.FunctionLikeKinds
	}
	if o.GenericsInFQN != nil {
		c.GenericsInFQN = *o.GenericsInFQN
	}
	capabilities[lang] = c
}

// All returns every supported language tag, sorted for deterministic
// warmup order (§4.3).
func All() []Language {
	return []Language{
		graphmodel.LangC,
		graphmodel.LangCpp,
		graphmodel.LangJava,
		graphmodel.LangJavaScript,
		graphmodel.LangPython,
		graphmodel.LangRust,
		graphmodel.LangTypeScript,
	}
}
