package service

import "errors"

// ErrNoData is returned when the ledger holds nothing to answer a query.
var ErrNoData = errors.New("no data")
