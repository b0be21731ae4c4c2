package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/joycompass/joycompass-backend/internal/models"
	"github.com/joycompass/joycompass-backend/internal/services"
)

var statsCache = &services.CacheService{}

type CreateEntryRequest struct {
	Date            string `json:"date"`
	Content         string `json:"content"`
	HappinessRating int    `json:"happiness_rating"`
}

type UpdateEntryRequest struct {
	Content         *string `json:"content,omitempty"`
	HappinessRating *int    `json:"happiness_rating,omitempty"`
}

type EntryResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	Entry   *models.Entry `json:"entry,omitempty"`
}

type ListEntriesResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Entries []models.Entry `json:"entries"`
	Total   int            `json:"total"`
}

// validEntryDate reports whether the date is a real calendar day in
// yyyy-MM-dd form.
func validEntryDate(date string) bool {
	_, err := time.Parse("2006-01-02", date)
	return err == nil
}

// invalidateStats drops the cached dashboard stats after any entry mutation.
func invalidateStats(userID string) {
	statsCache.Delete(services.StatsCacheKey(userID))
}

// ListEntries returns all journal entries for the authenticated user,
// newest date first. A date may appear more than once; the home screen's
// today-lookup takes the first match while the calendar shows every row.
func ListEntries(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireAuth(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ListEntriesResponse{
			Success: false,
			Message: "Authentication required",
			Entries: []models.Entry{},
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	entries, err := services.ListEntries(ctx, userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ListEntriesResponse{
			Success: false,
			Message: "Failed to load entries",
			Entries: []models.Entry{},
		})
		return
	}

	writeJSON(w, http.StatusOK, ListEntriesResponse{
		Success: true,
		Entries: entries,
		Total:   len(entries),
	})
}

// CreateEntry persists a new journal entry for the authenticated user
func CreateEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireAuth(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, EntryResponse{Success: false, Message: "Authentication required"})
		return
	}

	var req CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, EntryResponse{Success: false, Message: "Invalid request body"})
		return
	}

	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, EntryResponse{Success: false, Message: "Content is required"})
		return
	}
	if !validEntryDate(req.Date) {
		writeJSON(w, http.StatusBadRequest, EntryResponse{Success: false, Message: "Date must be in yyyy-MM-dd format"})
		return
	}
	if req.HappinessRating < 1 || req.HappinessRating > 10 {
		writeJSON(w, http.StatusBadRequest, EntryResponse{Success: false, Message: "Happiness rating must be between 1 and 10"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	entry, err := services.InsertEntry(ctx, userID, req.Date, req.Content, req.HappinessRating)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, EntryResponse{Success: false, Message: "Failed to create entry"})
		return
	}

	invalidateStats(userID)

	writeJSON(w, http.StatusCreated, EntryResponse{
		Success: true,
		Message: "Entry created successfully",
		Entry:   entry,
	})
}

// UpdateEntry applies a partial update (content and/or happiness rating)
// to one of the authenticated user's entries
func UpdateEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireAuth(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, EntryResponse{Success: false, Message: "Authentication required"})
		return
	}

	entryID := r.URL.Query().Get("id")
	if entryID == "" {
		writeJSON(w, http.StatusBadRequest, EntryResponse{Success: false, Message: "id is required"})
		return
	}

	var req UpdateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, EntryResponse{Success: false, Message: "Invalid request body"})
		return
	}

	patch := services.EntryPatch{Content: req.Content, HappinessRating: req.HappinessRating}
	if patch.IsEmpty() {
		writeJSON(w, http.StatusBadRequest, EntryResponse{Success: false, Message: "Nothing to update"})
		return
	}
	if req.Content != nil && *req.Content == "" {
		writeJSON(w, http.StatusBadRequest, EntryResponse{Success: false, Message: "Content cannot be empty"})
		return
	}
	if req.HappinessRating != nil && (*req.HappinessRating < 1 || *req.HappinessRating > 10) {
		writeJSON(w, http.StatusBadRequest, EntryResponse{Success: false, Message: "Happiness rating must be between 1 and 10"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := services.UpdateEntry(ctx, userID, entryID, patch); err != nil {
		if err == services.ErrEntryNotFound {
			writeJSON(w, http.StatusNotFound, EntryResponse{Success: false, Message: "Entry not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, EntryResponse{Success: false, Message: "Failed to update entry"})
		return
	}

	invalidateStats(userID)

	writeJSON(w, http.StatusOK, EntryResponse{Success: true, Message: "Entry updated successfully"})
}

// DeleteEntry removes one of the authenticated user's entries
func DeleteEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireAuth(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, EntryResponse{Success: false, Message: "Authentication required"})
		return
	}

	entryID := r.URL.Query().Get("id")
	if entryID == "" {
		writeJSON(w, http.StatusBadRequest, EntryResponse{Success: false, Message: "id is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := services.DeleteEntry(ctx, userID, entryID); err != nil {
		if err == services.ErrEntryNotFound {
			writeJSON(w, http.StatusNotFound, EntryResponse{Success: false, Message: "Entry not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, EntryResponse{Success: false, Message: "Failed to delete entry"})
		return
	}

	invalidateStats(userID)

	writeJSON(w, http.StatusOK, EntryResponse{Success: true, Message: "Entry deleted successfully"})
}
