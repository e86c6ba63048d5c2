package types

// DeltaItem represents one normalized change reported by the delta feed.
// ID is always present; everything else is optional or derived. IsFolder and
// IsDelete are independent flags — a deleted folder carries both.
type DeltaItem struct {
	// ID is the stable identifier of the remote item (survives renames/moves)
	ID string `json:"id"`

	// Name is the display name; nil for changes that omit it (e.g. some deletes)
	Name *string `json:"name,omitempty"`

	// ParentID identifies the containing folder; nil means root or unknown
	ParentID *string `json:"parentId,omitempty"`

	// IsFolder is true if the item is a container
	IsFolder bool `json:"isFolder"`

	// IsDelete is true if the item was removed
	IsDelete bool `json:"isDelete"`

	// LastModified is the modification time converted to local civil time
	// in "yyyy-MM-dd HH:mm:ss" form
	LastModified string `json:"lastModified"`
}

// DeltaResult is the outcome of one complete delta walk: every change across
// every page, in server-delivered order, plus the token to replay on the
// next sync call.
type DeltaResult struct {
	// SyncToken is the opaque continuation token from the final page
	SyncToken string `json:"syncToken"`

	// Items is the ordered concatenation of all pages' changes
	Items []DeltaItem `json:"items"`
}

// DeltaOptions configures a delta walk
type DeltaOptions struct {
	// MaxPages bounds the number of pages followed in one walk; 0 uses the
	// configured default
	MaxPages int
}

// Headers implements TableRenderer for change listings
func (r *DeltaResult) Headers() []string {
	return []string{"ID", "NAME", "FOLDER", "DELETED", "PARENT", "MODIFIED"}
}

// Rows implements TableRenderer
func (r *DeltaResult) Rows() [][]string {
	rows := make([][]string, 0, len(r.Items))
	for _, item := range r.Items {
		name, parent := "", ""
		if item.Name != nil {
			name = *item.Name
		}
		if item.ParentID != nil {
			parent = *item.ParentID
		}
		rows = append(rows, []string{
			item.ID,
			name,
			boolMark(item.IsFolder),
			boolMark(item.IsDelete),
			parent,
			item.LastModified,
		})
	}
	return rows
}

// EmptyMessage implements TableRenderer
func (r *DeltaResult) EmptyMessage() string {
	return "No changes since last sync"
}

func boolMark(b bool) string {
	if b {
		return "yes"
	}
	return ""
}
