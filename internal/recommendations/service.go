package recommendations

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ecomstore/storefront-backend/pkg/db/models"
	"github.com/ecomstore/storefront-backend/pkg/enums"
	pkgerrors "github.com/ecomstore/storefront-backend/pkg/errors"
	"github.com/ecomstore/storefront-backend/pkg/logger"
)

const (
	DefaultLimit = 10
	MaxLimit     = 50
	CacheTTL     = 5 * time.Minute
)

var (
	errMissingSubject = errors.New("strategy requires a subject id")
	errNoHistory      = errors.New("user has no purchase or wishlist history")
	errUnknownProduct = errors.New("reference product not found")
)

// Request selects a strategy and its subject.
type Request struct {
	Strategy  enums.RecommendationStrategy
	UserID    string
	ProductID string
	Limit     int
}

// Result is a ranked product list. Strategy reports what actually produced it.
type Result struct {
	Strategy  enums.RecommendationStrategy `json:"strategy"`
	Requested enums.RecommendationStrategy `json:"requested_strategy"`
	Fallback  bool                         `json:"fallback"`
	Products  []models.Product             `json:"products"`
}

type catalog interface {
	UserAffinity(ctx context.Context, userID string) (*Affinity, error)
	ForAffinity(ctx context.Context, affinity *Affinity, limit int) ([]models.Product, error)
	Product(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Related(ctx context.Context, ref *models.Product, limit int) ([]models.Product, error)
	Similar(ctx context.Context, ref *models.Product, limit int) ([]models.Product, error)
	Trending(ctx context.Context, limit int) ([]models.Product, error)
	General(ctx context.Context, limit int) ([]models.Product, error)
}

type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CacheKey(parts ...string) string
}

// Service ranks products for the storefront widgets.
type Service interface {
	Recommend(ctx context.Context, req Request) (*Result, error)
}

type service struct {
	catalog catalog
	cache   cacheStore
	logg    *logger.Logger
}

// NewService builds the recommendation service. cache may be nil.
func NewService(repo catalog, cache cacheStore, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "recommendation repository required")
	}
	return &service{catalog: repo, cache: cache, logg: logg}, nil
}

// NormalizeLimit applies the default and maximum page size.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Recommend runs the requested strategy and degrades to general on any lookup failure.
// Only a failure of the general strategy itself is returned as an error.
func (s *service) Recommend(ctx context.Context, req Request) (*Result, error) {
	if req.Strategy == "" {
		req.Strategy = enums.RecommendationGeneral
	}
	if !req.Strategy.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown recommendation strategy")
	}
	req.Limit = NormalizeLimit(req.Limit)
	req.UserID = strings.TrimSpace(req.UserID)
	req.ProductID = strings.TrimSpace(req.ProductID)

	key := s.cacheKey(req)
	if cached := s.readCache(ctx, key); cached != nil {
		return cached, nil
	}

	result := &Result{Strategy: req.Strategy, Requested: req.Strategy}
	products, err := s.run(ctx, req)
	if err != nil && req.Strategy != enums.RecommendationGeneral {
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"strategy": req.Strategy,
				"reason":   err.Error(),
			})
			s.logg.Warn(logCtx, "recommendation strategy failed; falling back to general")
		}
		result.Strategy = enums.RecommendationGeneral
		result.Fallback = true
		products, err = s.catalog.General(ctx, req.Limit)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recommendations")
	}
	if products == nil {
		products = []models.Product{}
	}
	result.Products = products

	s.writeCache(ctx, key, result)
	return result, nil
}

func (s *service) run(ctx context.Context, req Request) ([]models.Product, error) {
	switch req.Strategy {
	case enums.RecommendationUser:
		if req.UserID == "" {
			return nil, errMissingSubject
		}
		affinity, err := s.catalog.UserAffinity(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		if len(affinity.Categories) == 0 || len(affinity.Brands) == 0 {
			return nil, errNoHistory
		}
		return s.catalog.ForAffinity(ctx, affinity, req.Limit)
	case enums.RecommendationProduct, enums.RecommendationSimilar:
		ref, err := s.reference(ctx, req.ProductID)
		if err != nil {
			return nil, err
		}
		if req.Strategy == enums.RecommendationProduct {
			return s.catalog.Related(ctx, ref, req.Limit)
		}
		return s.catalog.Similar(ctx, ref, req.Limit)
	case enums.RecommendationTrending:
		return s.catalog.Trending(ctx, req.Limit)
	default:
		return s.catalog.General(ctx, req.Limit)
	}
}

func (s *service) reference(ctx context.Context, raw string) (*models.Product, error) {
	if raw == "" {
		return nil, errMissingSubject
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	ref, err := s.catalog.Product(ctx, id)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, errUnknownProduct
	}
	return ref, nil
}

func (s *service) cacheKey(req Request) string {
	if s.cache == nil {
		return ""
	}
	subject := ""
	switch req.Strategy {
	case enums.RecommendationUser:
		subject = req.UserID
	case enums.RecommendationProduct, enums.RecommendationSimilar:
		subject = req.ProductID
	}
	return s.cache.CacheKey("reco", string(req.Strategy), subject, strconv.Itoa(req.Limit))
}

// readCache treats every cache error as a miss.
func (s *service) readCache(ctx context.Context, key string) *Result {
	if key == "" {
		return nil
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil || raw == "" {
		return nil
	}
	var cached Result
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return nil
	}
	return &cached
}

func (s *service) writeCache(ctx context.Context, key string, result *Result) {
	if key == "" {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, CacheTTL); err != nil && s.logg != nil {
		s.logg.Warn(ctx, "recommendation cache write failed: "+err.Error())
	}
}
