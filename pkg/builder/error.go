package builder

import "errors"

// ErrBuild is returned for any failure that aborts a build. The root cause
// is wrapped alongside it.
var ErrBuild = errors.New("build failed")
