package mode

// Mode is the kind of search that produced a response.
type Mode string

// Search mode constants.
const (
	// Text ranks catalog candidates against a typed query.
	Text Mode = "text"
	// Image ranks candidates against keywords detected in an uploaded image.
	Image Mode = "image"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Text || m == Image
}
