package builtin

// FilterProfiles folds (profile_id, buids) tuples into unique
// (buid, profile_id) rows.
//
// Every BUID of every row is assigned in input order, so when two profiles
// claim the same BUID the later row wins. Output follows the order in which
// each BUID was first seen. Rows without BUIDs contribute nothing; a scalar
// BUID counts as a one-element list.
//
// Running FilterProfiles on rows shaped (profile_id, [buid]) built from its
// own output returns the same rows.
func FilterProfiles(rows [][]any) [][]any {
	owner := make(map[string]any)
	var order []string

	for _, row := range rows {
		if len(row) < 2 || row[1] == nil {
			continue
		}
		buids, ok := asList(row[1])
		if !ok {
			buids = []any{row[1]}
		}
		for _, b := range buids {
			buid, ok := idString(b)
			if !ok {
				continue
			}
			if _, seen := owner[buid]; !seen {
				order = append(order, buid)
			}
			owner[buid] = row[0]
		}
	}

	out := make([][]any, 0, len(order))
	for _, buid := range order {
		out = append(out, []any{buid, owner[buid]})
	}
	return out
}
