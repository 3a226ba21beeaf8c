package store

import (
	"encoding/json"
	"strconv"

	"life-reality/internal/model"
)

// Document is the persisted shape of the whole database.
type Document struct {
	Articles   []model.Article  `json:"articles"`
	Categories []model.Category `json:"categories"`
	Admin      model.Admin      `json:"admin"`
	Sequences  Sequences        `json:"sequences"`
}

// Sequences are id high-water marks, so deleting the newest record never
// frees its id for reuse.
type Sequences struct {
	Articles   int `json:"articles"`
	Categories int `json:"categories"`
}

// EmptyDocument is what a missing or unreadable document reads as.
func EmptyDocument() *Document {
	return &Document{
		Articles:   []model.Article{},
		Categories: []model.Category{},
	}
}

// Clone deep-copies the document. The category join is dropped from every
// article.
func (d *Document) Clone() *Document {
	out := &Document{
		Articles:   make([]model.Article, len(d.Articles)),
		Categories: make([]model.Category, len(d.Categories)),
		Admin:      d.Admin,
		Sequences:  d.Sequences,
	}
	copy(out.Articles, d.Articles)
	copy(out.Categories, d.Categories)
	for i := range out.Articles {
		out.Articles[i].Category = nil
	}
	return out
}

func (d *Document) articleIndex(id string) int {
	for i := range d.Articles {
		if d.Articles[i].ID == id {
			return i
		}
	}
	return -1
}

func (d *Document) categoryIndex(id string) int {
	for i := range d.Categories {
		if d.Categories[i].ID == id {
			return i
		}
	}
	return -1
}

func (d *Document) nextArticleID() string {
	ids := make([]string, len(d.Articles))
	for i, a := range d.Articles {
		ids[i] = a.ID
	}
	id, seq := nextID(ids, d.Sequences.Articles)
	d.Sequences.Articles = seq
	return id
}

func (d *Document) nextCategoryID() string {
	ids := make([]string, len(d.Categories))
	for i, c := range d.Categories {
		ids[i] = c.ID
	}
	id, seq := nextID(ids, d.Sequences.Categories)
	d.Sequences.Categories = seq
	return id
}

// nextID returns max(numeric ids, seq)+1. Ids that are not decimal integers
// are ignored.
func nextID(ids []string, seq int) (string, int) {
	highest := seq
	for _, id := range ids {
		n, err := strconv.Atoi(id)
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	highest++
	return strconv.Itoa(highest), highest
}

// EncodeDocument renders the document the way it is written to disk.
func EncodeDocument(d *Document) ([]byte, error) {
	return json.MarshalIndent(d.Clone(), "", "  ")
}

// DecodeDocument parses a persisted document. Missing collections decode as
// empty ones.
func DecodeDocument(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	if d.Articles == nil {
		d.Articles = []model.Article{}
	}
	if d.Categories == nil {
		d.Categories = []model.Category{}
	}
	for i := range d.Articles {
		d.Articles[i].Category = nil
	}
	return &d, nil
}
