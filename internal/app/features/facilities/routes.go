package facilities

import (
	"github.com/dalemusser/vpcroadmap/internal/app/system/facility"
	"github.com/dalemusser/vpcroadmap/internal/app/system/facilityprovider"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the facility-less routes under /facilities. Every route sees
// a seeded store via gate.Seeder.
func Routes(h *Handler, gate *facilityprovider.Gate) chi.Router {
	r := chi.NewRouter()
	r.Use(gate.Seeder)

	r.Get("/", h.ServeList)
	r.Post("/", h.HandleCreate)
	r.Post("/select", h.HandleSelect)

	return r
}

// ScopedRoutes mounts the per-facility routes under /f/{code}. gate.Middleware
// resolves {code} before any handler runs, so handlers read the facility
// from the store rather than the URL.
func ScopedRoutes(h *Handler, gate *facilityprovider.Gate) chi.Router {
	r := chi.NewRouter()
	r.Use(gate.Middleware)

	r.Get("/", h.ServeView)
	r.Get("/members", h.ServeMembers)

	r.With(facility.RequireEdit).Post("/edit", h.HandleEdit)

	r.Group(func(pr chi.Router) {
		pr.Use(facility.RequireManageMembers)
		pr.Get("/activity", h.ServeActivity)
		pr.Post("/members", h.HandleGrant)
		pr.Post("/members/{userID}/delete", h.HandleRevoke)
	})

	return r
}
