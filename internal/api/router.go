package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	iauth "github.com/nexcard/nexcard/internal/auth"
	"github.com/nexcard/nexcard/internal/handlers"
	"github.com/nexcard/nexcard/internal/middleware"
	"github.com/nexcard/nexcard/internal/services"
)

// Dependencies bundles the services the router wires into handlers.
type Dependencies struct {
	Codes       *services.CodeService
	Resolver    *services.ResolverService
	Scans       *services.ScanRecorder
	Invitations *services.InvitationService
	Connections *services.ConnectionService
	Profiles    *services.ProfileService
	Accounts    *services.AccountService
	JWT         *iauth.JWTService
	RateStore   middleware.RateStore
}

func (d Dependencies) validate() error {
	switch {
	case d.Codes == nil:
		return fmt.Errorf("code service must be provided")
	case d.Resolver == nil:
		return fmt.Errorf("resolver service must be provided")
	case d.Scans == nil:
		return fmt.Errorf("scan recorder must be provided")
	case d.Invitations == nil:
		return fmt.Errorf("invitation service must be provided")
	case d.Connections == nil:
		return fmt.Errorf("connection service must be provided")
	case d.Profiles == nil:
		return fmt.Errorf("profile service must be provided")
	case d.Accounts == nil:
		return fmt.Errorf("account service must be provided")
	case d.JWT == nil:
		return fmt.Errorf("jwt service must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	r.Use(middleware.RateLimit(deps.RateStore, 300, time.Minute))

	registerHealthRoutes(r)

	publicHandler := handlers.NewPublicHandler(deps.Resolver, deps.Scans, deps.Invitations)
	authHandler := handlers.NewAuthHandler(deps.Accounts, deps.JWT)
	codeHandler := handlers.NewCodeHandler(deps.Codes, deps.Scans)
	profileHandler := handlers.NewProfileHandler(deps.Profiles, deps.Resolver)
	connectionHandler := handlers.NewConnectionHandler(deps.Connections, deps.Invitations)

	// Anonymous routes get a tighter limit: they are the scannable surface.
	public := r.Group("/api/public")
	public.Use(middleware.RateLimit(deps.RateStore, 60, time.Minute))
	registerPublicRoutes(public, publicHandler)

	registerAuthRoutes(r.Group("/api/auth"), authHandler, middleware.Auth(deps.JWT))

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT))
	registerCodeRoutes(api, codeHandler)
	registerProfileRoutes(api, profileHandler)
	registerConnectionRoutes(api, connectionHandler)

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
