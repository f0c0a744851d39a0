package handler

// DI for all handlers alike.

import (
	ppdb "github.com/dpeerlab/picasso/pkg/db"
)

type StoreContext struct {
	Store *ppdb.RunStore
}
