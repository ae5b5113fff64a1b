// Package auditlog keeps the controller's bounded event history.
//
// The Ring is a fixed arena sized at construction: appends past the
// capacity overwrite the oldest entry, so memory use is constant no
// matter how long the controller runs. Snapshot returns entries most
// recent first, which is the order every consumer wants.
//
// An optional SQLiteMirror persists each slot as it is written, keyed by
// arena position with a separate head/count cursor, so the history
// survives restarts without replaying an append stream.
package auditlog
