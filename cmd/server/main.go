package main

import (
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"chartbuilder-go/internal/api"
	"chartbuilder-go/internal/config"
	"chartbuilder-go/internal/state"
)

func main() {
	cfg, err := config.Load(os.Getenv("CHART_CONFIG"))
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	handler := api.NewHandler(state.New())

	// Router Setup
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Chart Builder Backend is Running"))
	})

	handler.RegisterRoutes(r)

	log.Printf("Starting chart backend on %s", cfg.HTTPAddr)
	log.Printf("CORS enabled for: %v", cfg.AllowedOrigins)

	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
