// Package mongo serves document collections from a MongoDB database.
package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"recsys/internal/document"
)

// Source implements document.Source over one MongoDB database.
type Source struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to uri and verifies the connection with a ping.
// The caller must Close the Source.
func Open(ctx context.Context, uri, database string) (*Source, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}
	return &Source{client: client, db: client.Database(database)}, nil
}

// Close disconnects the client.
func (s *Source) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Find runs a server-side equality filter with the field list as projection.
func (s *Source) Find(ctx context.Context, collection string, filter document.Filter, fields []document.FieldSpec) (document.Cursor, error) {
	opts := options.Find()
	if proj := Projection(fields); len(proj) > 0 {
		opts.SetProjection(proj)
	}

	cur, err := s.db.Collection(collection).Find(ctx, FilterDoc(filter), opts)
	if err != nil {
		return nil, err
	}
	return &cursor{cur: cur}, nil
}

// Projection renders fields as a Mongo projection document.
// _id is returned by Mongo unless excluded, so it needs no entry.
func Projection(fields []document.FieldSpec) bson.D {
	var proj bson.D
	seen := map[string]bool{}
	for _, f := range fields {
		p := f.String()
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		proj = append(proj, bson.E{Key: p, Value: 1})
	}
	return proj
}

// FilterDoc converts an equality filter to a query document.
func FilterDoc(f document.Filter) bson.M {
	out := bson.M{}
	for k, v := range f {
		out[k] = v
	}
	return out
}

type cursor struct {
	cur *mongo.Cursor
	doc document.Doc
	err error
}

func (c *cursor) Next(ctx context.Context) bool {
	if c.err != nil {
		return false
	}
	if !c.cur.Next(ctx) {
		return false
	}
	var raw bson.M
	if err := c.cur.Decode(&raw); err != nil {
		c.err = fmt.Errorf("mongo: decode: %w", err)
		return false
	}
	c.doc = Plain(raw).(map[string]any)
	return true
}

func (c *cursor) Doc() document.Doc { return c.doc }

func (c *cursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.cur.Err()
}

func (c *cursor) Close(ctx context.Context) error { return c.cur.Close(ctx) }

// Plain converts BSON container types to the plain shapes document.Project
// walks: documents become map[string]any and arrays []any. ObjectIDs are
// kept (they carry Hex() for string coercion); BSON dates become time.Time
// and 32-bit integers widen to int64.
func Plain(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Plain(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Plain(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = Plain(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Plain(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Plain(e)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	case int32:
		return int64(t)
	case primitive.Null, primitive.Undefined:
		return nil
	default:
		return v
	}
}

var _ document.Source = (*Source)(nil)
