// Package parserpool maintains per-thread, per-language tree-sitter
// parsers with lazy init and warmup (§4.3). Grounded on the teacher's
// internal/parser/parser.go lazy-initialization map and its
// defensive-copy-then-parse pattern protecting against tree-sitter's
// CGO buffer mutation.
package parserpool

import (
	"fmt"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_c "github.com/tree-sitter/tree-sitter-c/bindings/go"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/oldnordic/magellan/internal/graphmodel"
)

func languageFor(lang graphmodel.Language) (*tree_sitter.Language, error) {
	switch lang {
	case graphmodel.LangRust:
		return tree_sitter.NewLanguage(tree_sitter_rust.Language()), nil
	case graphmodel.LangPython:
		return tree_sitter.NewLanguage(tree_sitter_python.Language()), nil
	case graphmodel.LangC:
		return tree_sitter.NewLanguage(tree_sitter_c.Language()), nil
	case graphmodel.LangCpp:
		return tree_sitter.NewLanguage(tree_sitter_cpp.Language()), nil
	case graphmodel.LangJava:
		return tree_sitter.NewLanguage(tree_sitter_java.Language()), nil
	case graphmodel.LangJavaScript:
		return tree_sitter.NewLanguage(tree_sitter_javascript.Language()), nil
	case graphmodel.LangTypeScript:
		return tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()), nil
	default:
		return nil, fmt.Errorf("parserpool: unsupported language %q", lang)
	}
}

// perThread holds the lazily-created parsers for one goroutine/thread.
// Tree-sitter parsers are not safe for concurrent use, so each logical
// worker owns its own set, mirroring the teacher's "one parser instance
// per (thread, language) pair" design (§4.3, §5).
type perThread struct {
	mu      sync.Mutex
	parsers map[graphmodel.Language]*tree_sitter.Parser
}

// Pool hands out a *perThread set via thread-local storage, implemented
// here as a goroutine-keyed map since Go has no native TLS; callers
// obtain one per worker goroutine and reuse it for the goroutine's
// lifetime (the flush worker pool in internal/watch owns this mapping).
type Pool struct {
	mu      sync.Mutex
	threads map[int]*perThread
}

// New creates an empty parser pool.
func New() *Pool {
	return &Pool{threads: make(map[int]*perThread)}
}

// Warmup pre-initializes parsers for every known language on workerID,
// avoiding first-parse tail latency (§4.3). Optional: callers may skip
// this and rely on lazy init inside Parse.
func (p *Pool) Warmup(workerID int) error {
	for _, lang := range allLanguages() {
		if _, err := p.get(workerID, lang); err != nil {
			return err
		}
	}
	return nil
}

func allLanguages() []graphmodel.Language {
	return []graphmodel.Language{
		graphmodel.LangC, graphmodel.LangCpp, graphmodel.LangJava,
		graphmodel.LangJavaScript, graphmodel.LangPython, graphmodel.LangRust,
		graphmodel.LangTypeScript,
	}
}

func (p *Pool) threadFor(workerID int) *perThread {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.threads[workerID]
	if !ok {
		t = &perThread{parsers: make(map[graphmodel.Language]*tree_sitter.Parser)}
		p.threads[workerID] = t
	}
	return t
}

func (p *Pool) get(workerID int, lang graphmodel.Language) (*tree_sitter.Parser, error) {
	t := p.threadFor(workerID)
	t.mu.Lock()
	defer t.mu.Unlock()

	if parser, ok := t.parsers[lang]; ok {
		return parser, nil
	}

	tsLang, err := languageFor(lang)
	if err != nil {
		return nil, err
	}
	parser := tree_sitter.NewParser()
	if err := parser.SetLanguage(tsLang); err != nil {
		return nil, fmt.Errorf("parserpool: set language %q: %w", lang, err)
	}
	t.parsers[lang] = parser
	return parser, nil
}

// ParseTree is the opaque parse result returned to extractors: the
// tree-sitter tree plus the defensively-copied buffer it was parsed
// from (required because the C library mutates the input during parse).
type ParseTree struct {
	Tree    *tree_sitter.Tree
	Content []byte
	HasErr  bool
}

// Parse blocks, parses source on workerID's parser for lang, and never
// panics on syntactically invalid input: invalid trees are returned
// with error nodes and processed best-effort (§4.3).
func (p *Pool) Parse(workerID int, lang graphmodel.Language, source []byte) (tree *ParseTree, err error) {
	defer func() {
		if r := recover(); r != nil {
			tree = nil
			err = fmt.Errorf("parserpool: parser panic recovered: %v", r)
		}
	}()

	parser, perr := p.get(workerID, lang)
	if perr != nil {
		return nil, perr
	}

	// Copy-on-parse: tree-sitter's C library mutates the buffer it is
	// given during parsing via CGO, so the caller's original bytes
	// (often shared with the chunk store) must never be handed over
	// directly.
	buf := make([]byte, len(source))
	copy(buf, source)

	t := parser.Parse(buf, nil)
	if t == nil {
		return nil, fmt.Errorf("parserpool: parse returned nil tree")
	}

	return &ParseTree{Tree: t, Content: buf, HasErr: t.RootNode().HasError()}, nil
}

// Close releases all parsers owned by this pool.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.threads {
		t.mu.Lock()
		for _, parser := range t.parsers {
			parser.Close()
		}
		t.mu.Unlock()
	}
	p.threads = make(map[int]*perThread)
}
