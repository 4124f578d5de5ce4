package builtin

// FilterHistory expands profile tuples into history rows.
//
// Input rows are (profile_id, previously_recommended, viewed_before). Each
// list is optional and handled independently. Non-string ids and ids longer
// than MaxProductIDLen are dropped.
func FilterHistory(rows [][]any) [][]any {
	var out [][]any
	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		out = appendHistory(out, row[0], row[1], HistoryPreviouslyRecommended)
		out = appendHistory(out, row[0], row[2], HistoryViewedBefore)
	}
	return out
}

func appendHistory(out [][]any, profileID, list any, historyType string) [][]any {
	ids, ok := asList(list)
	if !ok {
		return out
	}
	for _, v := range ids {
		id, ok := v.(string)
		if !ok || len(id) > MaxProductIDLen {
			continue
		}
		out = append(out, []any{profileID, id, historyType})
	}
	return out
}
