package main

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/oldnordic/magellan/internal/graphmodel"
)

// exportDocument is the JSON Schema 2.0.0 export shape (§6 File
// Formats/Wire): every symbol carries symbol_id, canonical_fqn, and
// display_fqn, alongside the files, references, and calls that tie
// the graph together.
type exportDocument struct {
	Files      []graphmodel.File      `json:"files"`
	Symbols    []graphmodel.Symbol    `json:"symbols"`
	References []graphmodel.Reference `json:"references"`
	Calls      []graphmodel.Call      `json:"calls"`
}

// scipSymbol is the export's SCIP-oriented rendering of one symbol:
// 0-indexed lines (§6: "SCIP export uses 0-indexed lines; conversion
// is explicit at the encoder"), everything else unchanged. A full SCIP
// protobuf index is not produced — no protobuf/SCIP library appears
// anywhere in the retrieval pack, so only the documented line-indexing
// conversion is implemented; consumers wanting the wire protobuf format
// can run this JSON rendering through their own encoder.
type scipSymbol struct {
	SymbolID     string `json:"symbol_id"`
	CanonicalFQN string `json:"canonical_fqn"`
	DisplayFQN   string `json:"display_fqn"`
	File         string `json:"file"`
	StartLine0   int    `json:"start_line"`
	StartCol     int    `json:"start_character"`
	EndLine0     int    `json:"end_line"`
	EndCol       int    `json:"end_character"`
}

var exportCommand = &cli.Command{
	Name:  "export",
	Usage: "export the full graph as JSON Schema 2.0.0, or a SCIP-line-indexed symbol rendering",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "format", Value: "json", Usage: "json (default, schema 2.0.0) or scip (0-indexed lines)"},
	},
	Action: func(c *cli.Context) error {
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

		files, err := s.ListFiles(tx)
		if err != nil {
			return userError("listing files: %v", err)
		}
		symbols, err := s.AllSymbols(tx)
		if err != nil {
			return userError("listing symbols: %v", err)
		}
		refs, err := s.AllReferences(tx)
		if err != nil {
			return userError("listing references: %v", err)
		}
		calls, err := s.AllCalls(tx)
		if err != nil {
			return userError("listing calls: %v", err)
		}

		switch c.String("format") {
		case "scip":
			out := make([]scipSymbol, 0, len(symbols))
			for _, sym := range symbols {
				out = append(out, scipSymbol{
					SymbolID:     sym.SymbolID,
					CanonicalFQN: sym.CanonicalFQN,
					DisplayFQN:   sym.DisplayFQN,
					File:         sym.File,
					StartLine0:   sym.Span.StartLine - 1,
					StartCol:     sym.Span.StartCol,
					EndLine0:     sym.Span.EndLine - 1,
					EndCol:       sym.Span.EndCol,
				})
			}
			return emit(newExecutionID(), out, false)
		case "json", "":
			return emit(newExecutionID(), exportDocument{Files: files, Symbols: symbols, References: refs, Calls: calls}, false)
		default:
			return userError("unknown --format %q (want json or scip)", c.String("format"))
		}
	},
}
