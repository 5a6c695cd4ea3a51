package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProductRating is one user's rating of a product
type ProductRating struct {
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	Value     int                `bson:"value" json:"value"`
	Review    string             `bson:"review,omitempty" json:"review,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// Product represents produce listed by a farmer
type Product struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	FarmerID      primitive.ObjectID `bson:"farmer_id" json:"farmer_id"`
	Name          string             `bson:"name" json:"name"`
	Description   string             `bson:"description" json:"description"`
	Price         float64            `bson:"price" json:"price"`
	Unit          string             `bson:"unit" json:"unit"` // e.g. "kg", "dozen"
	Category      string             `bson:"category" json:"category"`
	Images        []string           `bson:"images" json:"images"`
	Stock         int                `bson:"stock" json:"stock"`
	IsOrganic     bool               `bson:"is_organic" json:"is_organic"`
	HarvestDate   *time.Time         `bson:"harvest_date,omitempty" json:"harvest_date,omitempty"`
	Tags          []string           `bson:"tags" json:"tags"`
	Ratings       []ProductRating    `bson:"ratings" json:"ratings"`
	AverageRating float64            `bson:"average_rating" json:"average_rating"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}

// ProductUpdate holds the product fields the owning farmer may change
type ProductUpdate struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	Price       *float64   `json:"price,omitempty"`
	Unit        *string    `json:"unit,omitempty"`
	Category    *string    `json:"category,omitempty"`
	Images      []string   `json:"images,omitempty"`
	Stock       *int       `json:"stock,omitempty"`
	IsOrganic   *bool      `json:"is_organic,omitempty"`
	HarvestDate *time.Time `json:"harvest_date,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
}

// ProductFilter narrows a product listing. Zero values mean "any".
type ProductFilter struct {
	FarmerID primitive.ObjectID
	Category string
	Organic  *bool
	Query    string
	MinPrice *float64
	MaxPrice *float64
}
