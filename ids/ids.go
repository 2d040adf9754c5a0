// Package ids generates the opaque, content-free identifiers used across the
// core: agents (agt_), features (ftr_), handoffs (hnd_), sessions (ses_), and
// worktree allocations (wta_). Ids are comparable only for equality — callers
// must never parse structure out of them beyond the prefix.
package ids

import "github.com/google/uuid"

// Prefix is a short tag identifying the kind of entity an id names.
type Prefix string

const (
	Agent      Prefix = "agt"
	Feature    Prefix = "ftr"
	Handoff    Prefix = "hnd"
	Session    Prefix = "ses"
	Worktree   Prefix = "wta"
	Handler    Prefix = "itv"
	Subscriber Prefix = "sub"
)

// New returns a new random id with the given prefix, e.g. "wta_3b1f...".
func New(p Prefix) string {
	return string(p) + "_" + uuid.NewString()
}
