package chunk

import "errors"

// ErrIngest is returned for invalid records or chunking parameters.
var ErrIngest = errors.New("ingest error")
