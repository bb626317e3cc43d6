package main

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/oldnordic/magellan/internal/graphmodel"
	"github.com/oldnordic/magellan/internal/query"
	"github.com/oldnordic/magellan/internal/store"
)

// withEngine opens the configured store and a read-only transaction,
// hands both plus a fresh query.Engine to fn, and always rolls the
// transaction back afterward (every Query Surface primitive is
// read-only, so there is nothing to commit).
func withEngine(c *cli.Context, fn func(tx store.Tx, e *query.Engine) (any, error)) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	s, err := openStore(c.String("backend"), cfg.DBPath)
	if err != nil {
		return err
	}
	defer s.Close()

	tx, err := s.Begin(context.Background())
	if err != nil {
		return userError("opening transaction: %v", err)
	}
	defer tx.Rollback()

	data, err := fn(tx, query.New(s))
	if err != nil {
		return userError("%v", err)
	}
	return emit(newExecutionID(), data, false)
}

var findCommand = &cli.Command{
	Name:      "find",
	Usage:     "find a symbol by name, optionally narrowed to a file",
	ArgsUsage: "<name>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "file", Usage: "narrow the search to this file"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return userError("find requires a symbol name")
		}
		name := c.Args().Get(0)
		file := c.String("file")
		return withEngine(c, func(tx store.Tx, e *query.Engine) (any, error) {
			return e.FindSymbol(tx, name, file)
		})
	},
}

var getCommand = &cli.Command{
	Name:      "get",
	Usage:     "get a symbol by its symbol_id",
	ArgsUsage: "<symbol-id>",
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return userError("get requires a symbol_id")
		}
		id := c.Args().Get(0)
		return withEngine(c, func(tx store.Tx, e *query.Engine) (any, error) {
			sym, ok, err := e.FindBySymbolID(tx, id)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, nil
			}
			return sym, nil
		})
	},
}

var getFileCommand = &cli.Command{
	Name:      "get-file",
	Usage:     "get a file entity and its symbols",
	ArgsUsage: "<path>",
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return userError("get-file requires a path")
		}
		path := c.Args().Get(0)
		return withEngine(c, func(tx store.Tx, e *query.Engine) (any, error) {
			f, ok, err := e.Store.GetFile(tx, path)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, nil
			}
			syms, err := e.SymbolsInFile(tx, path, "")
			if err != nil {
				return nil, err
			}
			return map[string]any{"file": f, "symbols": syms}, nil
		})
	},
}

var labelCommand = &cli.Command{
	Name:      "label",
	Usage:     "report which node kind (file, symbol, reference, or call) an id belongs to",
	ArgsUsage: "<id>",
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return userError("label requires an id")
		}
		id := c.Args().Get(0)
		return withEngine(c, func(tx store.Tx, e *query.Engine) (any, error) {
			if _, ok, err := e.Store.GetFile(tx, id); err != nil {
				return nil, err
			} else if ok {
				return map[string]any{"id": id, "kind": graphmodel.NodeFile}, nil
			}
			if _, ok, err := e.FindBySymbolID(tx, id); err != nil {
				return nil, err
			} else if ok {
				return map[string]any{"id": id, "kind": graphmodel.NodeSymbol}, nil
			}
			return map[string]any{"id": id, "kind": nil}, nil
		})
	},
}

var refsCommand = &cli.Command{
	Name:      "refs",
	Usage:     "find references and calls touching a symbol_id",
	ArgsUsage: "<symbol-id>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "direction", Value: "in", Usage: "in (who points at this symbol) or out (what it calls)"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return userError("refs requires a symbol_id")
		}
		id := c.Args().Get(0)
		dir := graphmodel.Direction(c.String("direction"))
		return withEngine(c, func(tx store.Tx, e *query.Engine) (any, error) {
			return e.Refs(tx, id, dir)
		})
	},
}

var chunksCommand = &cli.Command{
	Name:      "chunks",
	Usage:     "list every chunk in a file",
	ArgsUsage: "<file>",
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return userError("chunks requires a file path")
		}
		file := c.Args().Get(0)
		return withEngine(c, func(tx store.Tx, e *query.Engine) (any, error) {
			return e.ChunksInFile(tx, file)
		})
	},
}

var chunkBySymbolCommand = &cli.Command{
	Name:      "chunk-by-symbol",
	Usage:     "find the chunk(s) for a named symbol, optionally narrowed to a file",
	ArgsUsage: "<name>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "file", Usage: "narrow the search to this file"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return userError("chunk-by-symbol requires a symbol name")
		}
		name := c.Args().Get(0)
		file := c.String("file")
		return withEngine(c, func(tx store.Tx, e *query.Engine) (any, error) {
			return e.ChunksForSymbol(tx, name, file)
		})
	},
}

var chunkBySpanCommand = &cli.Command{
	Name:      "chunk-by-span",
	Usage:     "find the chunk at an exact byte span in a file",
	ArgsUsage: "<file> <byte-start> <byte-end>",
	Action: func(c *cli.Context) error {
		if c.NArg() < 3 {
			return userError("chunk-by-span requires <file> <byte-start> <byte-end>")
		}
		file := c.Args().Get(0)
		start, err := parseInt(c.Args().Get(1))
		if err != nil {
			return userError("invalid byte-start: %v", err)
		}
		end, err := parseInt(c.Args().Get(2))
		if err != nil {
			return userError("invalid byte-end: %v", err)
		}
		return withEngine(c, func(tx store.Tx, e *query.Engine) (any, error) {
			chunk, ok, err := e.ChunkBySpan(tx, file, graphmodel.Span{ByteStart: start, ByteEnd: end})
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, nil
			}
			return chunk, nil
		})
	},
}

var astCommand = &cli.Command{
	Name:      "ast",
	Usage:     "dump a file's structural AST forest",
	ArgsUsage: "<file>",
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return userError("ast requires a file path")
		}
		file := c.Args().Get(0)
		return withEngine(c, func(tx store.Tx, e *query.Engine) (any, error) {
			return e.AST(tx, file)
		})
	},
}

var findASTCommand = &cli.Command{
	Name:      "find-ast",
	Usage:     "find every AST node of the given structural kind, workspace-wide",
	ArgsUsage: "<kind>",
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return userError("find-ast requires a node kind")
		}
		kind := c.Args().Get(0)
		return withEngine(c, func(tx store.Tx, e *query.Engine) (any, error) {
			return e.FindASTByKind(tx, kind)
		})
	},
}

var collisionsCommand = &cli.Command{
	Name:      "collisions",
	Usage:     "group symbols sharing the same fqn/display_fqn/canonical_fqn",
	ArgsUsage: "<field>",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "limit", Value: 50, Usage: "max groups to return, <=0 for unbounded"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return userError("collisions requires a field (fqn, display_fqn, or canonical_fqn)")
		}
		field := query.CollisionField(c.Args().Get(0))
		limit := c.Int("limit")
		return withEngine(c, func(tx store.Tx, e *query.Engine) (any, error) {
			return e.Collisions(tx, field, limit)
		})
	},
}

var cyclesCommand = &cli.Command{
	Name:  "cycles",
	Usage: "find every call-graph cycle, including self-recursion",
	Action: func(c *cli.Context) error {
		return withEngine(c, func(tx store.Tx, e *query.Engine) (any, error) {
			return e.Cycles(tx)
		})
	},
}

var deadCodeCommand = &cli.Command{
	Name:  "dead-code",
	Usage: "find symbols with no incoming reference or call",
	Action: func(c *cli.Context) error {
		return withEngine(c, func(tx store.Tx, e *query.Engine) (any, error) {
			return e.DeadCode(tx)
		})
	},
}

var reachableCommand = &cli.Command{
	Name:      "reachable",
	Usage:     "find every symbol_id reachable from a starting symbol via the call graph",
	ArgsUsage: "<symbol-id>",
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return userError("reachable requires a symbol_id")
		}
		id := c.Args().Get(0)
		return withEngine(c, func(tx store.Tx, e *query.Engine) (any, error) {
			return e.ReachableFrom(tx, id)
		})
	},
}

var pathsCommand = &cli.Command{
	Name:      "paths",
	Usage:     "find every simple call-graph path between two symbols",
	ArgsUsage: "<from-symbol-id> <to-symbol-id>",
	Action: func(c *cli.Context) error {
		if c.NArg() < 2 {
			return userError("paths requires <from-symbol-id> <to-symbol-id>")
		}
		from, to := c.Args().Get(0), c.Args().Get(1)
		return withEngine(c, func(tx store.Tx, e *query.Engine) (any, error) {
			return e.PathsBetween(tx, from, to)
		})
	},
}

// queryCommand is the generic, low-level entry point onto every Query
// Surface primitive (§4.12), named "query" to distinguish it from the
// convenience commands above: "query symbols-in-file src/main.rs",
// "query reachable-from <id>", and so on. The named commands cover the
// common cases; this one exists so nothing in the Query Surface is
// unreachable from the CLI even before a dedicated command exists for it.
var queryCommand = &cli.Command{
	Name:      "query",
	Usage:     "low-level dispatcher onto any Query Surface primitive by name",
	ArgsUsage: "<primitive> [args...]",
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return userError("query requires a primitive name")
		}
		primitive := c.Args().Get(0)
		rest := c.Args().Tail()
		return withEngine(c, func(tx store.Tx, e *query.Engine) (any, error) {
			return dispatchPrimitive(tx, e, primitive, rest)
		})
	},
}

func dispatchPrimitive(tx store.Tx, e *query.Engine, primitive string, args []string) (any, error) {
	switch primitive {
	case "symbols-in-file":
		if len(args) < 1 {
			return nil, errArgs("symbols-in-file <file> [kind]")
		}
		kind := graphmodel.SymbolKind("")
		if len(args) > 1 {
			kind = graphmodel.SymbolKind(args[1])
		}
		return e.SymbolsInFile(tx, args[0], kind)
	case "find-symbol":
		if len(args) < 1 {
			return nil, errArgs("find-symbol <name> [file]")
		}
		file := ""
		if len(args) > 1 {
			file = args[1]
		}
		return e.FindSymbol(tx, args[0], file)
	case "find-by-symbol-id":
		if len(args) < 1 {
			return nil, errArgs("find-by-symbol-id <id>")
		}
		sym, ok, err := e.FindBySymbolID(tx, args[0])
		if err != nil || !ok {
			return nil, err
		}
		return sym, nil
	case "refs":
		if len(args) < 1 {
			return nil, errArgs("refs <symbol-id> [in|out]")
		}
		dir := graphmodel.DirIn
		if len(args) > 1 {
			dir = graphmodel.Direction(args[1])
		}
		return e.Refs(tx, args[0], dir)
	case "chunks-for-symbol":
		if len(args) < 1 {
			return nil, errArgs("chunks-for-symbol <name> [file]")
		}
		file := ""
		if len(args) > 1 {
			file = args[1]
		}
		return e.ChunksForSymbol(tx, args[0], file)
	case "chunks-in-file":
		if len(args) < 1 {
			return nil, errArgs("chunks-in-file <file>")
		}
		return e.ChunksInFile(tx, args[0])
	case "ast":
		if len(args) < 1 {
			return nil, errArgs("ast <file>")
		}
		return e.AST(tx, args[0])
	case "find-ast-by-kind":
		if len(args) < 1 {
			return nil, errArgs("find-ast-by-kind <kind>")
		}
		return e.FindASTByKind(tx, args[0])
	case "collisions":
		if len(args) < 1 {
			return nil, errArgs("collisions <field> [limit]")
		}
		limit := 0
		if len(args) > 1 {
			if n, err := parseInt(args[1]); err == nil {
				limit = n
			}
		}
		return e.Collisions(tx, query.CollisionField(args[0]), limit)
	case "reachable-from":
		if len(args) < 1 {
			return nil, errArgs("reachable-from <symbol-id>")
		}
		return e.ReachableFrom(tx, args[0])
	case "cycles":
		return e.Cycles(tx)
	case "paths-between":
		if len(args) < 2 {
			return nil, errArgs("paths-between <from> <to>")
		}
		return e.PathsBetween(tx, args[0], args[1])
	case "dead-code":
		return e.DeadCode(tx)
	default:
		return nil, errArgs("unknown primitive %q", primitive)
	}
}
