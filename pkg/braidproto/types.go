// Package braidproto frames versioned state updates in the Braid
// subscription format: a header block per update followed by either a full
// body or a list of range patches.
package braidproto

// Merge types carried in the Merge-Type header
const (
	// MergeTypeTracked marks a body holding a track diff: a nested JSON
	// object containing only the fields changed since the parent version.
	MergeTypeTracked = "tracked"
)

// StatusSubscribed is the HTTP status of a successful subscription
const StatusSubscribed = 209

// Patch represents a patch operation in the Braid protocol
type Patch struct {
	Unit    string `json:"unit"`    // Unit represents the operational unit of the patch, e.g. "replace"
	Range   string `json:"range"`   // Range represents the path of the patch, e.g. "/foo/bar/0/id"
	Content string `json:"content"` // Content is the actual content of the patch, can be a JSON object
}

// Update represents a Braid protocol update with version, parents, and either patches or a full body
type Update struct {
	Version   string   `json:"version"`              // Version identifier for this update
	Parents   []string `json:"parents"`              // Parent versions this update is based on
	MergeType string   `json:"merge_type,omitempty"` // How Body relates to the parent, empty for a full snapshot
	Patches   []Patch  `json:"patches,omitempty"`    // Optional list of patches
	Body      []byte   `json:"body,omitempty"`       // Optional full body content
}

// IsSnapshot reports whether the update replaces the whole resource
func (u *Update) IsSnapshot() bool {
	return u.MergeType == "" && len(u.Patches) == 0
}
