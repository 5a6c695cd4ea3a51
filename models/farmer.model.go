package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GeoPoint is a latitude/longitude pair
type GeoPoint struct {
	Latitude  float64 `bson:"latitude" json:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude"`
}

// FarmLocation describes where a farm is
type FarmLocation struct {
	Description string    `bson:"description" json:"description"`
	Coordinates *GeoPoint `bson:"coordinates,omitempty" json:"coordinates,omitempty"`
}

// FarmerProfile holds the public farm details of a farmer account
type FarmerProfile struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID         primitive.ObjectID `bson:"user_id" json:"user_id"`
	FarmName       string             `bson:"farm_name" json:"farm_name"`
	Description    string             `bson:"description,omitempty" json:"description,omitempty"`
	Location       FarmLocation       `bson:"location" json:"location"`
	Certifications []string           `bson:"certifications,omitempty" json:"certifications,omitempty"`
	PhotoURL       string             `bson:"photo_url,omitempty" json:"photo_url,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}
