package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// kdlFileName is the project/global configuration file name.
const kdlFileName = ".magellan.kdl"

// LoadKDL loads configuration from dir/.magellan.kdl. A missing file is
// not an error: it returns (nil, nil) so callers can fall back to
// defaults or a different layer.
func LoadKDL(dir string) (*Config, error) {
	path := filepath.Join(dir, kdlFileName)
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg, err := parseKDL(string(content))
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// parseKDL walks the KDL document for the closed set of top-level
// sections this design recognizes: workspace, watch, index, include,
// exclude. Unknown nodes are ignored rather than rejected, so a config
// file written for a future field does not break an older binary.
func parseKDL(content string) (*Config, error) {
	cfg := defaults()

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, err
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "workspace":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "root":
					assignSimpleString(cn, "root", func(v string) { cfg.Root = v })
				case "db_path":
					assignSimpleString(cn, "db_path", func(v string) { cfg.DBPath = v })
				case "lang_overrides":
					assignSimpleString(cn, "lang_overrides", func(v string) { cfg.LangOverridesPath = v })
				}
			}
		case "watch":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "mode":
					if b, ok := firstBoolArg(cn); ok {
						cfg.WatchMode = b
					}
				case "debounce_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.DebounceMs = v
					}
				}
			}
		case "index":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "max_file_size":
					if s, ok := firstStringArg(cn); ok {
						if sz, err := parseSize(s); err == nil {
							cfg.MaxFileSize = sz
						}
					} else if v, ok := firstIntArg(cn); ok {
						cfg.MaxFileSize = int64(v)
					}
				case "staleness_threshold_sec":
					if v, ok := firstIntArg(cn); ok {
						cfg.StalenessThresholdSec = int64(v)
					}
				case "respect_gitignore":
					if b, ok := firstBoolArg(cn); ok {
						cfg.RespectGitignore = b
					}
				}
			}
		case "include":
			cfg.Include = append(cfg.Include, collectStringArgs(n)...)
		case "exclude":
			cfg.Exclude = collectStringArgs(n)
		}
	}

	return cfg, nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

// collectStringArgs reads either inline arguments (`exclude "a" "b"`) or
// one-string-per-child block form (`exclude { "a" \n "b" }`).
func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}

// parseSize parses strings like "10MB", "500KB", "1GB", or a bare byte count.
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var multiplier int64 = 1
	numStr := s
	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		numStr = strings.TrimSuffix(s, "B")
	}

	n, err := strconv.ParseInt(strings.TrimSpace(numStr), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid size %q: %w", s, err)
	}
	return n * multiplier, nil
}
