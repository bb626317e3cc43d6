package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/oldnordic/magellan/internal/graphmodel"
	"github.com/oldnordic/magellan/internal/langcap"
)

// langOverrideEntry is one language tag's table in a language-capability
// TOML file, e.g.:
//
//	[rust]
//	generics_in_fqn = true
//	call_node_kinds = ["call_expression", "macro_invocation"]
type langOverrideEntry struct {
	ScopeSeparator    string   `toml:"scope_separator"`
	SymbolNodeKinds   []string `toml:"symbol_node_kinds"`
	ScopeNodeKinds    []string `toml:"scope_node_kinds"`
	CallNodeKinds     []string `toml:"call_node_kinds"`
	FunctionLikeKinds []string `toml:"function_like_kinds"`
	GenericsInFQN     *bool    `toml:"generics_in_fqn"`
}

// LoadLangOverrides reads a TOML file keyed by language tag (rust,
// python, c, cpp, java, javascript, typescript) and applies each
// table's fields on top of internal/langcap's built-in capability for
// that tag. Unknown tags are passed through to langcap.Override, which
// ignores them (the closed tag set is never extended by configuration).
func LoadLangOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read language overrides %s: %w", path, err)
	}

	var entries map[string]langOverrideEntry
	if err := toml.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("config: parse language overrides %s: %w", path, err)
	}

	for tag, e := range entries {
		langcap.Override(graphmodel.Language(tag), langcap.CapabilityOverride{
			ScopeSeparator:    e.ScopeSeparator,
			SymbolNodeKinds:   e.SymbolNodeKinds,
			ScopeNodeKinds:    e.ScopeNodeKinds,
			CallNodeKinds:     e.CallNodeKinds,
			FunctionLikeKinds: e.FunctionLikeKinds,
			GenericsInFQN:     e.GenericsInFQN,
		})
	}
	return nil
}
