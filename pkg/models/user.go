package models

// User is the authenticated principal as seen by this service. Identity and
// session lifecycle belong to the vendor; we only carry verified claims.
type User struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	ProfilePictureURL string `json:"profile_picture_url,omitempty"`
}
