package builtin

// FilterOrders expands sale sessions into (session_id, product_id) rows.
//
// Input rows are (session_id, has_sale, products). Sessions whose has_sale
// is not truthy, or whose products value is not a list, are skipped. Each
// element is either a document with an "id" field or a scalar id; elements
// without a usable id are skipped.
func FilterOrders(rows [][]any) [][]any {
	var out [][]any
	for _, row := range rows {
		if len(row) < 3 || !Truthy(row[1]) {
			continue
		}
		products, ok := asList(row[2])
		if !ok {
			continue
		}
		for _, p := range products {
			id, ok := orderedProductID(p)
			if !ok {
				continue
			}
			out = append(out, []any{row[0], id})
		}
	}
	return out
}

func orderedProductID(p any) (string, bool) {
	if m, ok := p.(map[string]any); ok {
		return idString(m["id"])
	}
	return idString(p)
}
