package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/joycompass/joycompass-backend/internal/database"
	"github.com/joycompass/joycompass-backend/internal/models"
)

const entriesCollection = "entries"

// ErrEntryNotFound is returned when an entry id does not exist or is owned
// by a different user. Ownership misses are indistinguishable from missing
// rows on purpose.
var ErrEntryNotFound = fmt.Errorf("entry not found")

// EnsureEntryIndexes configures indexes for the entries collection.
// Called on startup from main after Mongo has connected.
func EnsureEntryIndexes(ctx context.Context) error {
	col := database.DB.Collection(entriesCollection)

	// Compound index on (user_id, entry_date) to support the per-user,
	// date-descending listing.
	indexModels := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "entry_date", Value: -1},
			},
			Options: options.Index().SetName("idx_user_entry_date"),
		},
	}

	for _, m := range indexModels {
		if _, err := col.Indexes().CreateOne(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// ListEntries returns all entries owned by userID, entry_date descending
// with created_at descending as tie-breaker. Multiple entries may share a
// date; the listing makes no uniqueness promise.
func ListEntries(ctx context.Context, userID string) ([]models.Entry, error) {
	col := database.DB.Collection(entriesCollection)

	findOptions := options.Find()
	findOptions.SetSort(bson.D{
		{Key: "entry_date", Value: -1},
		{Key: "created_at", Value: -1},
	})

	cursor, err := col.Find(ctx, bson.M{"user_id": userID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	entries := []models.Entry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// InsertEntry persists a new entry for userID and returns the stored row
// with its assigned id and created_at.
func InsertEntry(ctx context.Context, userID, entryDate, content string, happinessRating int) (*models.Entry, error) {
	now := time.Now().UTC()
	entry := models.Entry{
		ID:              primitive.NewObjectID(),
		UserID:          userID,
		EntryDate:       entryDate,
		Content:         content,
		HappinessRating: happinessRating,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if _, err := database.DB.Collection(entriesCollection).InsertOne(ctx, entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// EntryPatch carries the updatable fields of an entry. Nil means unchanged.
type EntryPatch struct {
	Content         *string
	HappinessRating *int
}

// IsEmpty reports whether the patch changes nothing.
func (p EntryPatch) IsEmpty() bool {
	return p.Content == nil && p.HappinessRating == nil
}

// UpdateEntry applies a partial update to the entry with the given id,
// scoped to userID. Only content and happiness_rating can change;
// entry_date and created_at are immutable after first persistence.
func UpdateEntry(ctx context.Context, userID, entryID string, patch EntryPatch) error {
	objectID, err := primitive.ObjectIDFromHex(entryID)
	if err != nil {
		return ErrEntryNotFound
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	if patch.Content != nil {
		set["content"] = *patch.Content
	}
	if patch.HappinessRating != nil {
		set["happiness_rating"] = *patch.HappinessRating
	}

	res, err := database.DB.Collection(entriesCollection).UpdateOne(ctx,
		bson.M{"_id": objectID, "user_id": userID},
		bson.M{"$set": set},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// DeleteEntry removes the entry with the given id, scoped to userID.
func DeleteEntry(ctx context.Context, userID, entryID string) error {
	objectID, err := primitive.ObjectIDFromHex(entryID)
	if err != nil {
		return ErrEntryNotFound
	}

	res, err := database.DB.Collection(entriesCollection).DeleteOne(ctx,
		bson.M{"_id": objectID, "user_id": userID},
	)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrEntryNotFound
	}
	return nil
}
