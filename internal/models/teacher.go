package models

// Teacher is an aggregated teacher entry. ID is nil when the source that
// produced it carries no identifier.
type Teacher struct {
	ID          *string  `json:"id"`
	DisplayName string   `json:"displayName"`
	ShortCode   *string  `json:"shortCode"`
	Subjects    []string `json:"subjects"`
}
