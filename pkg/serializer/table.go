package serializer

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var headerCaser = cases.Title(language.English)

// writeTable renders a value as a two-column FIELD/VALUE table, flattening
// nested structures into dotted keys. It goes through JSON so any value the
// other formats accept is representable here too.
func writeTable(out io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to flatten value for table output: %w", err)
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("failed to flatten value for table output: %w", err)
	}

	rows := map[string]string{}
	flatten("", decoded, rows)

	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\n", headerCaser.String("field"), headerCaser.String("value"))

	if len(keys) == 0 {
		fmt.Fprintln(tw, "<empty>\t")
	}
	for _, k := range keys {
		fmt.Fprintf(tw, "%s\t%s\n", k, rows[k])
	}

	return tw.Flush()
}

func flatten(prefix string, v any, rows map[string]string) {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flatten(key, child, rows)
		}
	case []any:
		for i, child := range val {
			flatten(fmt.Sprintf("%s[%d]", prefix, i), child, rows)
		}
	default:
		if prefix == "" {
			prefix = "value"
		}
		rows[prefix] = fmt.Sprintf("%v", val)
	}
}
