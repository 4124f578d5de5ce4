package postgres

import "recsys/internal/storage"

func init() {
	// registers the backend factory
	storage.Register("postgres", New)
}
