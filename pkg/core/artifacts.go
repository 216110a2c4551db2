package core

// Attachment represents a debug artifact captured for a step
type Attachment struct {
	Name        string `json:"name"`        // screenshot, hierarchy
	ContentType string `json:"contentType"` // MIME type
	Path        string `json:"path"`        // File path relative to the run directory
	Body        []byte `json:"-"`           // In-memory content, written by the report writer
}

// Common attachment names
const (
	AttachmentScreenshot = "screenshot"
	AttachmentHierarchy  = "hierarchy"
)

// Common content types
const (
	ContentTypePNG = "image/png"
	ContentTypeXML = "application/xml"
)

// SnapshotAttachments returns the screenshot and hierarchy of snap as attachments.
func SnapshotAttachments(prefix string, snap *Snapshot) []Attachment {
	if snap == nil {
		return nil
	}
	var out []Attachment
	if len(snap.Screenshot) > 0 {
		out = append(out, Attachment{
			Name:        AttachmentScreenshot,
			ContentType: ContentTypePNG,
			Path:        prefix + ".png",
			Body:        snap.Screenshot,
		})
	}
	if snap.Tree != nil && snap.Tree.Raw != "" {
		out = append(out, Attachment{
			Name:        AttachmentHierarchy,
			ContentType: ContentTypeXML,
			Path:        prefix + ".xml",
			Body:        []byte(snap.Tree.Raw),
		})
	}
	return out
}
