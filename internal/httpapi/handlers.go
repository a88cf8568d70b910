package httpapi

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tdalverme/umbral/internal/filtering"
	"github.com/tdalverme/umbral/internal/listing"
	"github.com/tdalverme/umbral/internal/matching"
	"github.com/tdalverme/umbral/internal/similarity"
	"github.com/tdalverme/umbral/internal/storage"
	"github.com/tdalverme/umbral/internal/user"
)

const (
	defaultBrowseLimit  = 50
	defaultSearchLimit  = 10
	defaultPreviewLimit = 10
)

func (s *Server) listListings(c *gin.Context) {
	limit := intQuery(c, "limit", defaultBrowseLimit)

	filters := user.HardFilters{
		OperationType: c.Query("operation"),
	}
	if v := c.Query("neighborhood"); v != "" {
		filters.Neighborhoods = strings.Split(v, ",")
	}
	if v, ok := floatQuery(c, "max_price_usd"); ok {
		filters.MaxPriceUSD = &v
	}
	if v, ok := floatQuery(c, "min_price_usd"); ok {
		filters.MinPriceUSD = &v
	}
	if v, ok := floatQuery(c, "min_size_m2"); ok {
		filters.MinSizeM2 = &v
	}
	if v := intQuery(c, "min_rooms", 0); v > 0 {
		filters.MinRooms = &v
	}
	if err := filters.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	all, err := s.listings.All(c.Request.Context())
	if err != nil {
		s.logger.Error("listing browse failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "catalog unavailable"})
		return
	}

	collection := listing.NewCollection(all)
	collection.SortByRecency()

	items := make([]*listing.Listing, 0, collection.Len())
	for _, l := range collection.Items {
		if !filtering.Eligible(l, &filters) {
			continue
		}
		items = append(items, l)
		if len(items) >= limit {
			break
		}
	}

	c.JSON(http.StatusOK, gin.H{"count": len(items), "listings": items})
}

func (s *Server) getListing(c *gin.Context) {
	l, err := s.listings.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
		return
	}
	if err != nil {
		s.logger.Error("listing lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "catalog unavailable"})
		return
	}
	c.JSON(http.StatusOK, l)
}

type searchRequest struct {
	Text      string            `json:"text"`
	Vector    listing.Embedding `json:"vector"`
	Kind      string            `json:"kind"`
	Threshold float64           `json:"threshold"`
	Limit     int               `json:"limit"`
}

// search runs a nearest-neighbor query from either a raw vector or a text
// embedded on the fly.
func (s *Server) search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind := similarity.Kind(req.Kind)
	if kind == "" {
		kind = similarity.KindFull
	}
	if kind != similarity.KindFull && kind != similarity.KindVibe {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be full or vibe"})
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	query := req.Vector
	if len(query) == 0 {
		if strings.TrimSpace(req.Text) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "text or vector is required"})
			return
		}
		if s.embedder == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "text search requires an embedder"})
			return
		}
		var err error
		query, err = s.embedder.Embed(c.Request.Context(), req.Text)
		if err != nil {
			s.logger.Error("query embedding failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "embedding provider unavailable"})
			return
		}
	}

	hits, err := s.listings.SearchSimilar(c.Request.Context(), query, kind, req.Threshold, limit)
	if err != nil {
		s.logger.Error("similarity search failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(hits), "results": hits})
}

// previewMatches evaluates the matching pipeline for one user without
// touching the notification ledger.
func (s *Server) previewMatches(c *gin.Context) {
	u, ok := s.lookupUser(c)
	if !ok {
		return
	}
	limit := intQuery(c, "limit", defaultPreviewLimit)

	all, err := s.listings.All(c.Request.Context())
	if err != nil {
		s.logger.Error("listing browse failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "catalog unavailable"})
		return
	}

	eligible, steps := filtering.Apply(listing.NewCollection(all), &u.HardFilters, s.logger)

	type preview struct {
		Listing    *listing.Listing `json:"listing"`
		Score      float64          `json:"score"`
		Kind       similarity.Kind  `json:"kind"`
		FinalScore float64          `json:"final_score"`
	}

	matches := make([]preview, 0)
	if u.HasPreferenceVector() {
		for _, l := range eligible.Items {
			result, err := similarity.Score(l, u)
			if err != nil {
				continue
			}
			if !result.Candidate(s.thresholds) {
				continue
			}
			weighted := matching.WeightedScore(l.Scores, u.SoftPreferences)
			matches = append(matches, preview{
				Listing:    l,
				Score:      result.Score,
				Kind:       result.Kind,
				FinalScore: matching.FinalScore(result.Score, weighted),
			})
		}
		sort.SliceStable(matches, func(i, j int) bool {
			if matches[i].Score != matches[j].Score {
				return matches[i].Score > matches[j].Score
			}
			return matches[i].Listing.IngestedAt.After(matches[j].Listing.IngestedAt)
		})
		if len(matches) > limit {
			matches = matches[:limit]
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":      u.ID,
		"filter_steps": steps,
		"matches":      matches,
	})
}

type feedbackRequest struct {
	ListingID string `json:"listing_id"`
	Reaction  string `json:"reaction"`
}

func (s *Server) recordFeedback(c *gin.Context) {
	if s.feedback == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "feedback ledger is not configured"})
		return
	}
	u, ok := s.lookupUser(c)
	if !ok {
		return
	}

	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reaction := user.Reaction(req.Reaction)
	if req.ListingID == "" || !reaction.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "listing_id and a valid reaction are required"})
		return
	}

	if _, err := s.listings.GetByID(c.Request.Context(), req.ListingID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
			return
		}
		s.logger.Error("listing lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "catalog unavailable"})
		return
	}

	err := s.feedback.RecordReaction(c.Request.Context(), user.Feedback{
		UserID:    u.ID,
		ListingID: req.ListingID,
		Reaction:  reaction,
	})
	if err != nil {
		s.logger.Error("feedback write failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "feedback unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": u.ID, "listing_id": req.ListingID, "reaction": reaction})
}

func (s *Server) listFeedback(c *gin.Context) {
	if s.feedback == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "feedback ledger is not configured"})
		return
	}
	u, ok := s.lookupUser(c)
	if !ok {
		return
	}

	reactions, err := s.feedback.ReactionsFor(c.Request.Context(), u.ID)
	if err != nil {
		s.logger.Error("feedback read failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "feedback unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": u.ID, "count": len(reactions), "reactions": reactions})
}

func (s *Server) lookupUser(c *gin.Context) (*user.User, bool) {
	chatID, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chat_id must be an integer"})
		return nil, false
	}

	u, err := s.users.GetByChatID(c.Request.Context(), chatID)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return nil, false
	}
	if err != nil {
		s.logger.Error("user lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user store unavailable"})
		return nil, false
	}
	return u, true
}

func intQuery(c *gin.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.DefaultQuery(name, strconv.Itoa(fallback)))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func floatQuery(c *gin.Context, name string) (float64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
