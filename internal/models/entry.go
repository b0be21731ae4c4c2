package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Entry represents one journaled day: free text plus a 1-10 happiness rating.
// EntryDate is the calendar day the user journals against (yyyy-MM-dd);
// CreatedAt is the moment of first persistence and never changes afterwards.
type Entry struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID          string             `bson:"user_id" json:"-"`
	EntryDate       string             `bson:"entry_date" json:"date"`
	Content         string             `bson:"content" json:"content"`
	HappinessRating int                `bson:"happiness_rating" json:"happiness_rating"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updated_at"`
}
