package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ProductType string

const (
	TypeSimple   ProductType = "simple"
	TypeVariable ProductType = "variable"
)

type Status string

const (
	StatusDraft   Status = "draft"
	StatusPublic  Status = "public"
	StatusPrivate Status = "private"
)

// Product is stored in a single collection; Type decides which of the
// simple or variable field groups is populated.
type Product struct {
	ID               primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	Type             ProductType          `json:"type" bson:"type"`
	Title            string               `json:"title" bson:"title"`
	ShortDescription string               `json:"shortDescription" bson:"shortDescription"`
	LongDescription  string               `json:"longDescription" bson:"longDescription"`
	Categories       []primitive.ObjectID `json:"categories" bson:"categories"`
	Featured         bool                 `json:"featured" bson:"featured"`
	Status           Status               `json:"status" bson:"status"`
	ImageFolder      string               `json:"-" bson:"imageFolder"`

	// simple
	SKU           string                     `json:"sku,omitempty" bson:"sku,omitempty"`
	Images        []string                   `json:"images,omitempty" bson:"images,omitempty"`
	Price         float64                    `json:"price,omitempty" bson:"price,omitempty"`
	DiscountPrice float64                    `json:"discountPrice,omitempty" bson:"discountPrice,omitempty"`
	Quantity      int                        `json:"quantity,omitempty" bson:"quantity,omitempty"`
	Attributes    []SimpleAttributeSelection `json:"attributes,omitempty" bson:"attributes,omitempty"`

	// variable
	BaseImages []string    `json:"baseImages,omitempty" bson:"baseImages,omitempty"`
	Variations []Variation `json:"variations,omitempty" bson:"variations,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// SimpleAttributeSelection lists every value of an attribute a simple product offers.
type SimpleAttributeSelection struct {
	Attribute primitive.ObjectID `json:"attribute" bson:"attribute" validate:"required"`
	Values    []string           `json:"values" bson:"values" validate:"required,min=1"`
}

// AttributeSelection pins one value of an attribute for a variation.
type AttributeSelection struct {
	Attribute primitive.ObjectID `json:"attribute" bson:"attribute" validate:"required"`
	Value     string             `json:"value" bson:"value" validate:"required,keysegment"`
}

type Variation struct {
	SKU           string               `json:"sku" bson:"sku"`
	Attributes    []AttributeSelection `json:"attributes" bson:"attributes"`
	Price         float64              `json:"price" bson:"price"`
	DiscountPrice float64              `json:"discountPrice" bson:"discountPrice"`
	Quantity      int                  `json:"quantity" bson:"quantity"`
	VariantImages []string             `json:"variantImages" bson:"variantImages"`
}

// AllImages returns every image URL the product references.
func (p *Product) AllImages() []string {
	var urls []string
	urls = append(urls, p.Images...)
	urls = append(urls, p.BaseImages...)
	for _, v := range p.Variations {
		urls = append(urls, v.VariantImages...)
	}
	return urls
}
