package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

const unknownSizesLiteral = "unknown"

// AvailableSizes is either a known list of sizes (possibly empty) or a marker that the
// site does not expose size-level stock data at all.
type AvailableSizes struct {
	values  []string
	unknown bool
}

func UnknownSizes() AvailableSizes {
	return AvailableSizes{unknown: true}
}

func KnownSizes(sizes ...string) AvailableSizes {
	return AvailableSizes{values: append([]string{}, sizes...)}
}

func (s AvailableSizes) Known() bool { return !s.unknown }

// Values is empty for unknown sizes; check Known first.
func (s AvailableSizes) Values() []string { return s.values }

func (s *AvailableSizes) Add(size string) {
	s.unknown = false
	s.values = append(s.values, size)
}

func (s AvailableSizes) Equal(other AvailableSizes) bool {
	if s.unknown || other.unknown {
		return s.unknown == other.unknown
	}
	return SameSet(s.values, other.values)
}

func (s AvailableSizes) MarshalJSON() ([]byte, error) {
	if s.unknown {
		return json.Marshal(unknownSizesLiteral)
	}
	if s.values == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.values)
}

func (s *AvailableSizes) UnmarshalJSON(data []byte) error {
	var literal string
	if err := json.Unmarshal(data, &literal); err == nil {
		if literal != unknownSizesLiteral {
			return fmt.Errorf("available sizes: unexpected literal %q", literal)
		}
		*s = UnknownSizes()
		return nil
	}
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*s = KnownSizes(values...)
	return nil
}

var sizeAliases = []struct {
	size     string
	prefixes []string
}{
	{"xxs", []string{"xxs", "2xs", "extra extra small"}},
	{"xs", []string{"extra-small", "extra small", "xs"}},
	{"s", []string{"small", "s"}},
	{"m", []string{"medium", "m"}},
	{"xxl", []string{"extra extra large", "xxl", "2xl", "2x"}},
	{"xl", []string{"extra large", "extra-large", "xl", "1xl", "1x"}},
	{"l", []string{"large", "l"}},
}

// NormalizeSize maps the many spellings of clothing sizes to one canonical form.
// Multi-word sizes such as "us 0" are only lower-cased unless they spell out an alias.
func NormalizeSize(raw string) string {
	size := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(raw, ",", "")))
	multiWord := len(strings.Fields(size)) > 1
	for _, alias := range sizeAliases {
		for _, prefix := range alias.prefixes {
			if multiWord != strings.Contains(prefix, " ") {
				continue
			}
			if strings.HasPrefix(size, prefix) {
				return alias.size
			}
		}
	}
	return size
}

func FormatSizes(sizes []string) string {
	upper := make([]string, len(sizes))
	for i, s := range sizes {
		upper[i] = strings.ToUpper(s)
	}
	return strings.Join(upper, ", ")
}
