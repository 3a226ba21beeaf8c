package model

import (
	"time"
)

// Article is a published blog post.
// Category is a read-time join on CategoryID and is never persisted.
type Article struct {
	ID              string    `json:"id"`
	Slug            string    `json:"slug"`
	Title           string    `json:"title"`
	Excerpt         string    `json:"excerpt"`
	Content         string    `json:"content"`
	ImageURL        string    `json:"imageUrl"`
	ImageHint       string    `json:"imageHint"`
	Featured        bool      `json:"featured"`
	Author          string    `json:"author"`
	AuthorAvatarURL string    `json:"authorAvatarUrl"`
	CreatedAt       time.Time `json:"createdAt"`
	CategoryID      string    `json:"categoryId"`
	Category        *Category `json:"category,omitempty"`
}

// ArticleInput is the payload of a save. A nil field means "leave unchanged"
// on update. ID selects the article to update; an empty or unknown ID creates
// a new article.
type ArticleInput struct {
	ID              string
	Slug            *string
	Title           *string
	Excerpt         *string
	Content         *string
	ImageURL        *string
	ImageHint       *string
	Featured        *bool
	Author          *string
	AuthorAvatarURL *string
	CategoryID      *string
}

// Apply copies every set field of the input onto a.
func (in ArticleInput) Apply(a *Article) {
	setString(&a.Slug, in.Slug)
	setString(&a.Title, in.Title)
	setString(&a.Excerpt, in.Excerpt)
	setString(&a.Content, in.Content)
	setString(&a.ImageURL, in.ImageURL)
	setString(&a.ImageHint, in.ImageHint)
	setString(&a.Author, in.Author)
	setString(&a.AuthorAvatarURL, in.AuthorAvatarURL)
	setString(&a.CategoryID, in.CategoryID)
	if in.Featured != nil {
		a.Featured = *in.Featured
	}
}

// Ptr returns a pointer to v. Handy for building inputs.
func Ptr[T any](v T) *T {
	return &v
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
