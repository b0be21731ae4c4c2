package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/joycompass/joycompass-backend/internal/config"
	"github.com/joycompass/joycompass-backend/internal/database"
	"github.com/joycompass/joycompass-backend/internal/services"
)

var cloudinaryService *services.CloudinaryService

func InitCloudinaryService(cfg *config.Config) error {
	service, err := services.NewCloudinaryService(
		cfg.CloudinaryName,
		cfg.CloudinaryAPIKey,
		cfg.CloudinaryAPISecret,
	)
	if err != nil {
		return err
	}
	cloudinaryService = service
	return nil
}

type UpdateProfileRequest struct {
	Name string `json:"name"`
}

type ProfileResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
}

// UpdateProfile updates the authenticated user's display name
func UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireAuth(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ProfileResponse{Success: false, Message: "Authentication required"})
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ProfileResponse{Success: false, Message: "Invalid request body"})
		return
	}

	name := strings.TrimSpace(req.Name)
	if len(name) > 100 {
		writeJSON(w, http.StatusBadRequest, ProfileResponse{Success: false, Message: "Name is too long"})
		return
	}

	if _, err := database.PostgresDB.Exec("UPDATE users SET name = $1 WHERE id = $2", name, userID); err != nil {
		writeJSON(w, http.StatusInternalServerError, ProfileResponse{Success: false, Message: "Failed to update profile"})
		return
	}

	writeJSON(w, http.StatusOK, ProfileResponse{Success: true, Message: "Profile updated"})
}

// UploadAvatar stores a new avatar image in Cloudinary and records the URL
// on the user's profile
func UploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireAuth(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ProfileResponse{Success: false, Message: "Authentication required"})
		return
	}

	if cloudinaryService == nil {
		writeJSON(w, http.StatusInternalServerError, ProfileResponse{Success: false, Message: "File upload service not available"})
		return
	}

	// Parse multipart form (max 10MB)
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, ProfileResponse{Success: false, Message: "Failed to parse form: " + err.Error()})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ProfileResponse{Success: false, Message: "No file provided"})
		return
	}
	defer file.Close()

	url, err := cloudinaryService.UploadFileFromHeader(r.Context(), fileHeader, "joycompass/avatars")
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ProfileResponse{Success: false, Message: "Failed to upload file"})
		return
	}

	if _, err := database.PostgresDB.Exec("UPDATE users SET avatar_url = $1 WHERE id = $2", url, userID); err != nil {
		writeJSON(w, http.StatusInternalServerError, ProfileResponse{Success: false, Message: "Failed to update profile"})
		return
	}

	writeJSON(w, http.StatusOK, ProfileResponse{
		Success: true,
		Message: "Avatar uploaded successfully",
		URL:     url,
	})
}
