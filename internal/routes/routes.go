package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/joycompass/joycompass-backend/internal/handlers"
)

func SetupRoutes(r *chi.Mux) {
	// Auth routes
	r.Post("/api/auth/signup", handlers.Signup)
	r.Post("/api/auth/signin", handlers.Signin)
	r.Post("/api/auth/signout", handlers.Signout)
	r.Get("/api/auth/me", handlers.GetMe)
	r.Post("/api/auth/forgot-password", handlers.ForgotPassword)
	r.Post("/api/auth/reset-password", handlers.ResetPassword)

	// Profile routes
	r.Put("/api/profile", handlers.UpdateProfile)
	r.Post("/api/profile/avatar", handlers.UploadAvatar)

	// Journal entry routes
	r.Get("/api/entries", handlers.ListEntries)
	r.Post("/api/entries", handlers.CreateEntry)
	r.Put("/api/entries", handlers.UpdateEntry)
	r.Delete("/api/entries", handlers.DeleteEntry)

	// Happiness dashboard
	r.Get("/api/stats", handlers.GetStats)

	// Joy Assistant completion proxy
	r.Post("/api/chat", handlers.Chat)

	// WebSocket endpoint for interactive assistant conversations
	r.Get("/ws/chat", handlers.AssistantWebSocket)
}
