package cart

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/feastly/feastly-web/internal/app/models"
	"github.com/feastly/feastly-web/internal/app/observability/metrics"
	"github.com/feastly/feastly-web/internal/app/session"
)

type CartHandlers struct {
	store    *Store
	sessions *session.Manager
	logger   *zap.Logger
}

func NewCartHandlers(store *Store, sessions *session.Manager, logger *zap.Logger) *CartHandlers {
	return &CartHandlers{
		store:    store,
		sessions: sessions,
		logger:   logger,
	}
}

// GetCart returns the current cart view with computed totals.
func (h *CartHandlers) GetCart(c *gin.Context) {
	sess := h.sessions.Current(c)
	c.JSON(http.StatusOK, BuildView(h.store.Items(sess.ID())))
}

// AddItem adds the posted menu item snapshot to the cart.
func (h *CartHandlers) AddItem(c *gin.Context) {
	var item models.MenuItem
	if err := c.ShouldBindJSON(&item); err != nil || item.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a menu item with an id is required"})
		return
	}

	sess := h.sessions.Current(c)
	h.store.AddItem(sess.ID(), item)
	metrics.RecordCartOperation(c.Request.Context(), "add")

	h.logger.Debug("Cart item added",
		zap.String("sid", sess.ID()),
		zap.String("item_id", item.ID),
	)
	c.JSON(http.StatusOK, BuildView(h.store.Items(sess.ID())))
}

// IncrementItem adds one quantity to an existing line.
func (h *CartHandlers) IncrementItem(c *gin.Context) {
	sess := h.sessions.Current(c)
	h.store.IncrementQuantity(sess.ID(), c.Param("id"))
	metrics.RecordCartOperation(c.Request.Context(), "increment")
	c.JSON(http.StatusOK, BuildView(h.store.Items(sess.ID())))
}

// DecrementItem removes one quantity, dropping the line at zero.
func (h *CartHandlers) DecrementItem(c *gin.Context) {
	sess := h.sessions.Current(c)
	h.store.DecrementQuantity(sess.ID(), c.Param("id"))
	metrics.RecordCartOperation(c.Request.Context(), "decrement")
	c.JSON(http.StatusOK, BuildView(h.store.Items(sess.ID())))
}

// ClearCart empties the cart.
func (h *CartHandlers) ClearCart(c *gin.Context) {
	sess := h.sessions.Current(c)
	h.store.Clear(sess.ID())
	metrics.RecordCartOperation(c.Request.Context(), "clear")
	c.JSON(http.StatusOK, BuildView(nil))
}
