package server

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"life-reality/internal/model"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type articleRequest struct {
	Title           string `json:"title" validate:"required"`
	Slug            string `json:"slug" validate:"required"`
	Excerpt         string `json:"excerpt" validate:"required,max=200"`
	Content         string `json:"content" validate:"required"`
	ImageURL        string `json:"imageUrl" validate:"required,url"`
	ImageHint       string `json:"imageHint"`
	Author          string `json:"author" validate:"required"`
	AuthorAvatarURL string `json:"authorAvatarUrl" validate:"required,url"`
	CategoryID      string `json:"categoryId" validate:"required"`
	Featured        bool   `json:"featured"`
}

func (a articleRequest) input() model.ArticleInput {
	return model.ArticleInput{
		Slug:            model.Ptr(a.Slug),
		Title:           model.Ptr(a.Title),
		Excerpt:         model.Ptr(a.Excerpt),
		Content:         model.Ptr(a.Content),
		ImageURL:        model.Ptr(a.ImageURL),
		ImageHint:       model.Ptr(a.ImageHint),
		Featured:        model.Ptr(a.Featured),
		Author:          model.Ptr(a.Author),
		AuthorAvatarURL: model.Ptr(a.AuthorAvatarURL),
		CategoryID:      model.Ptr(a.CategoryID),
	}
}

// articlePatch updates only the fields present in the body.
type articlePatch struct {
	Title           *string `json:"title" validate:"omitempty,min=1"`
	Slug            *string `json:"slug" validate:"omitempty,min=1"`
	Excerpt         *string `json:"excerpt" validate:"omitempty,min=1,max=200"`
	Content         *string `json:"content" validate:"omitempty,min=1"`
	ImageURL        *string `json:"imageUrl" validate:"omitempty,url"`
	ImageHint       *string `json:"imageHint"`
	Author          *string `json:"author" validate:"omitempty,min=1"`
	AuthorAvatarURL *string `json:"authorAvatarUrl" validate:"omitempty,url"`
	CategoryID      *string `json:"categoryId" validate:"omitempty,min=1"`
	Featured        *bool   `json:"featured"`
}

func (p articlePatch) input(id string) model.ArticleInput {
	return model.ArticleInput{
		ID:              id,
		Slug:            p.Slug,
		Title:           p.Title,
		Excerpt:         p.Excerpt,
		Content:         p.Content,
		ImageURL:        p.ImageURL,
		ImageHint:       p.ImageHint,
		Featured:        p.Featured,
		Author:          p.Author,
		AuthorAvatarURL: p.AuthorAvatarURL,
		CategoryID:      p.CategoryID,
	}
}

type categoryRequest struct {
	Name string `json:"name" validate:"required"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type slugRequest struct {
	Title string `json:"title" validate:"required"`
}

type optimizeRequest struct {
	ArticleID      string `json:"articleId"`
	ContentBlock   string `json:"contentBlock" validate:"required_without=ArticleID"`
	TargetAudience string `json:"targetAudience" validate:"required"`
	WebsiteType    string `json:"websiteType" validate:"required"`
}

// checkRequest validates v and writes a 422 listing the failed fields.
func checkRequest(w http.ResponseWriter, v interface{}) bool {
	err := validate.Struct(v)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "invalid data", Fields: fields})
	return false
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without", "min":
		return "is required"
	case "max":
		return "must be " + fe.Param() + " characters or less"
	case "url":
		return "must be a valid URL"
	default:
		return "is invalid"
	}
}
