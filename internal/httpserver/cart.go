package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"cartsync/internal/domain"
	"cartsync/internal/repository/cartitem"
	"cartsync/internal/service/cartsync"
	"cartsync/internal/service/presenter"
	"cartsync/internal/session"
	"github.com/gin-gonic/gin"
)

// userMiddleware lifts the device's user id from the X-User-ID header onto
// the request context, where the session provider picks it up. Requests
// without the header still reach pure local endpoints; remote-dependent
// operations will fail with 401.
func userMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := c.GetHeader("X-User-ID"); raw != "" {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
				c.Request = c.Request.WithContext(session.WithUserID(c.Request.Context(), id))
			}
		}
		c.Next()
	}
}

type addItemRequest struct {
	ProductID      int64  `json:"product_id" binding:"required"`
	Name           string `json:"name"`
	ImageURL       string `json:"imageUrl"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int64  `json:"quantity" binding:"required"`
}

func getCartHandler(projector *presenter.Projector) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, projector.Current())
	}
}

func localItemsHandler(svc *cartsync.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := svc.LocalItems(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

func pullHandler(svc *cartsync.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.PullRemote(c.Request.Context()); err != nil {
			if errors.Is(err, domain.ErrNoSession) {
				writeError(c, err)
				return
			}
			// The one operation whose remote failure is user-visible.
			c.JSON(http.StatusBadGateway, gin.H{"error": "remote cart unavailable"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func addItemHandler(svc *cartsync.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		item, err := svc.Add(c.Request.Context(), cartsync.AddInput{
			ProductID:      req.ProductID,
			Name:           req.Name,
			ImageURL:       req.ImageURL,
			UnitPriceCents: req.UnitPriceCents,
			Quantity:       req.Quantity,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func adjustHandler(svc *cartsync.Service, delta int) gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, err := strconv.ParseInt(c.Param("productID"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
			return
		}
		if delta > 0 {
			err = svc.Increment(c.Request.Context(), productID)
		} else {
			err = svc.Decrement(c.Request.Context(), productID)
		}
		if err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func removeItemHandler(svc *cartsync.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, err := strconv.ParseInt(c.Param("productID"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
			return
		}
		if err := svc.Remove(c.Request.Context(), productID); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func clearHandler(svc *cartsync.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Clear(c.Request.Context()); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func pinHandler(projector *presenter.Projector) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		item := domain.CartLineItem{
			ProductID:      req.ProductID,
			Name:           req.Name,
			ImageURL:       req.ImageURL,
			UnitPriceCents: req.UnitPriceCents,
			Quantity:       req.Quantity,
		}
		item.Touch()
		projector.Pin(item)
		c.JSON(http.StatusOK, projector.Current())
	}
}

func unpinHandler(projector *presenter.Projector) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := projector.Unpin(c.Request.Context(), nil); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, projector.Current())
	}
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNoSession):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user session required"})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, cartitem.ErrNonPositiveQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
