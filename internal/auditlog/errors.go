package auditlog

import "errors"

// ErrMirrorWrite indicates the durable mirror rejected a ring write.
// The in-memory ring is unaffected.
var ErrMirrorWrite = errors.New("auditlog: mirror write failed")
