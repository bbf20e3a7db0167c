// Package user defines the signed-in user as seen by views
package user

// CurrentUser is the signed-in user. A nil *CurrentUser is an anonymous visitor.
type CurrentUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IsAnonymous reports whether u represents no signed-in user
func (u *CurrentUser) IsAnonymous() bool {
	return u == nil || u.ID == ""
}
