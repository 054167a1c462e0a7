package httpserver

import (
	"cartsync/internal/repository/cartitem"
	"cartsync/internal/service/cartsync"
	"cartsync/internal/service/presenter"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Deps carries the wired services the routes need.
type Deps struct {
	Store     cartitem.Repository
	Sync      *cartsync.Service
	Projector *presenter.Projector
}

// buildRouter wires routes for the cart surface.
func buildRouter(logger *logrus.Logger, deps Deps) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	router.Use(cors.Default())

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.Store))

	authed := router.Group("/", userMiddleware())
	{
		authed.GET("/cart", getCartHandler(deps.Projector))
		authed.GET("/cart/items", localItemsHandler(deps.Sync))
		authed.POST("/cart/pull", pullHandler(deps.Sync))
		authed.POST("/cart/items", addItemHandler(deps.Sync))
		authed.POST("/cart/items/:productID/increment", adjustHandler(deps.Sync, +1))
		authed.POST("/cart/items/:productID/decrement", adjustHandler(deps.Sync, -1))
		authed.DELETE("/cart/items/:productID", removeItemHandler(deps.Sync))
		authed.DELETE("/cart", clearHandler(deps.Sync))
		authed.PUT("/checkout/preview", pinHandler(deps.Projector))
		authed.DELETE("/checkout/preview", unpinHandler(deps.Projector))
	}

	return router, nil
}
