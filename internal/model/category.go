package model

// Category groups articles. Slug is derived from Name once, at creation.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// CategoryInput creates a category when ID is empty, renames one otherwise.
type CategoryInput struct {
	ID   string
	Name string
}

// Admin is the single administrator record. Either Password (plain) or
// PasswordHash (bcrypt) is set.
type Admin struct {
	Username     string `json:"username"`
	Password     string `json:"password,omitempty"`
	PasswordHash string `json:"passwordHash,omitempty"`
}

// Complete reports whether the record can be used to check credentials.
func (a Admin) Complete() bool {
	return a.Username != "" && (a.Password != "" || a.PasswordHash != "")
}
