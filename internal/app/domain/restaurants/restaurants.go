package restaurants

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/feastly/feastly-web/internal/app/domain"
	"github.com/feastly/feastly-web/internal/app/models"
	"github.com/feastly/feastly-web/internal/pkg/upstream"
)

// Service reads the public catalog through a short-lived cache so repeated
// browsing does not hammer the upstream.
type Service struct {
	client *upstream.Client
	cache  *gocache.Cache
	logger *zap.Logger
}

func NewService(client *upstream.Client, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{
		client: client,
		cache:  gocache.New(ttl, 2*ttl),
		logger: logger,
	}
}

// Restaurants lists the browsable restaurants.
func (s *Service) Restaurants(ctx context.Context) (json.RawMessage, error) {
	const cacheKey = "restaurants"
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.(json.RawMessage), nil
	}

	payload, err := s.client.Get(ctx, upstream.Anonymous, "/restaurants/")
	if err != nil {
		return nil, err
	}

	s.cache.SetDefault(cacheKey, payload)
	return payload, nil
}

// Menu returns one restaurant's menu.
func (s *Service) Menu(ctx context.Context, restaurantID string) (json.RawMessage, error) {
	cacheKey := "menu:" + restaurantID
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.(json.RawMessage), nil
	}

	payload, err := s.client.Get(ctx, upstream.Anonymous, "/restaurants/"+restaurantID+"/menu/")
	if err != nil {
		return nil, err
	}

	s.cache.SetDefault(cacheKey, payload)
	return payload, nil
}

// MenuItems decodes a menu payload into item snapshots, for callers that
// need typed prices rather than the raw page data.
func (s *Service) MenuItems(ctx context.Context, restaurantID string) ([]models.MenuItem, error) {
	payload, err := s.Menu(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	var items []models.MenuItem
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, err
	}
	return items, nil
}

type RestaurantsHandlers struct {
	service *Service
	logger  *zap.Logger
}

func NewRestaurantsHandlers(service *Service, logger *zap.Logger) *RestaurantsHandlers {
	return &RestaurantsHandlers{
		service: service,
		logger:  logger,
	}
}

// ListHandler serves the restaurant browse data.
func (h *RestaurantsHandlers) ListHandler(c *gin.Context) {
	h.logger.Debug("Restaurants page accessed", zap.String("ip", c.ClientIP()))

	payload, err := h.service.Restaurants(c.Request.Context())
	if err != nil {
		domain.RespondError(c, h.logger, err)
		return
	}
	c.Data(http.StatusOK, "application/json", payload)
}

// MenuHandler serves one restaurant's menu data.
func (h *RestaurantsHandlers) MenuHandler(c *gin.Context) {
	payload, err := h.service.Menu(c.Request.Context(), c.Param("id"))
	if err != nil {
		domain.RespondError(c, h.logger, err)
		return
	}
	c.Data(http.StatusOK, "application/json", payload)
}
