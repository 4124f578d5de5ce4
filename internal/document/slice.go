package document

import "context"

// SliceSource serves documents from memory. It backs tests and small
// fixtures; filtering is done with Matches.
type SliceSource map[string][]Doc

func (s SliceSource) Find(_ context.Context, collection string, filter Filter, _ []FieldSpec) (Cursor, error) {
	var docs []Doc
	for _, d := range s[collection] {
		if Matches(d, filter) {
			docs = append(docs, d)
		}
	}
	return &sliceCursor{docs: docs, pos: -1}, nil
}

type sliceCursor struct {
	docs []Doc
	pos  int
	err  error
}

func (c *sliceCursor) Next(ctx context.Context) bool {
	if c.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	c.pos++
	return c.pos < len(c.docs)
}

func (c *sliceCursor) Doc() Doc { return c.docs[c.pos] }

func (c *sliceCursor) Err() error { return c.err }

func (c *sliceCursor) Close(context.Context) error { return nil }
