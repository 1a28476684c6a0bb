package dispatch

import "regexp"

// fromJoinTablePattern matches the table identifier following a FROM or JOIN
// keyword in a simple single-statement SQL query. It is intentionally naive:
// an explicit ForTables list always takes precedence, so this scanner only
// needs to cover the common case when callers omit one.
var fromJoinTablePattern = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+` + "`" + `?([a-zA-Z_][a-zA-Z0-9_.]*)` + "`" + `?`)

// scanTables extracts the distinct table identifiers referenced by sql, in
// first-seen order, for queries that don't supply an explicit table list.
func scanTables(sql string) []string {
	matches := fromJoinTablePattern.FindAllStringSubmatch(sql, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		table := m[1]
		if _, ok := seen[table]; ok {
			continue
		}
		seen[table] = struct{}{}
		out = append(out, table)
	}
	return out
}
