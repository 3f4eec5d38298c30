package rpc

import (
	"fmt"
	"strconv"
	"strings"
)

// ResolvePath walks a decoded JSON value by a dot-path such as
// "result.sync_info.latest_block_height". Numeric segments index arrays.
func ResolvePath(v any, path string) (any, bool) {
	if path == "" {
		return v, true
	}
	cur := v
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// ParseHeight converts a height field extracted from an RPC response into
// an int64. Chains report heights as hex strings ("0x10d4f"), decimal
// strings or JSON numbers.
func ParseHeight(v any) (int64, error) {
	switch h := v.(type) {
	case float64:
		return int64(h), nil
	case string:
		s := strings.TrimSpace(h)
		if rest, ok := strings.CutPrefix(s, "0x"); ok {
			n, err := strconv.ParseInt(rest, 16, 64)
			if err != nil {
				return 0, fmt.Errorf("parse hex height %q: %w", s, err)
			}
			return n, nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse height %q: %w", s, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported height type %T", v)
	}
}
