package user

import (
	"strconv"
	"time"

	"github.com/tdalverme/umbral/internal/listing"
)

// User is one person receiving proactive matches, keyed by their external
// chat identity. The onboarding collaborator owns all writes; the matching
// engine only reads.
type User struct {
	ID       string `json:"id,omitempty"`
	ChatID   int64  `json:"chat_id"`
	Username string `json:"username,omitempty"`

	HardFilters     HardFilters     `json:"hard_filters"`
	SoftPreferences SoftPreferences `json:"soft_preferences"`

	// PreferenceVector is the embedding of the ideal description. Nil when
	// the user never supplied one.
	PreferenceVector listing.Embedding `json:"preference_vector,omitempty"`

	Active              bool `json:"active"`
	OnboardingCompleted bool `json:"onboarding_completed"`
	OnboardingStep      int  `json:"onboarding_step,omitempty"`

	TotalLikes    int `json:"total_likes,omitempty"`
	TotalDislikes int `json:"total_dislikes,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// SoftPreferences are the weighted qualitative axes plus the free-text ideal
// description. Weights influence ranking, never eligibility.
type SoftPreferences struct {
	WeightQuietness      float64 `json:"weight_quietness"`
	WeightLuminosity     float64 `json:"weight_luminosity"`
	WeightConnectivity   float64 `json:"weight_connectivity"`
	WeightWFHSuitability float64 `json:"weight_wfh_suitability"`
	WeightModernity      float64 `json:"weight_modernity"`
	WeightGreenSpaces    float64 `json:"weight_green_spaces"`

	IdealDescription string `json:"ideal_description,omitempty"`
}

// NewID derives the stable user identity from the chat id.
func NewID(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

// Matchable reports whether the user participates in matching passes at all.
func (u *User) Matchable() bool {
	return u.Active && u.OnboardingCompleted
}

// HasPreferenceVector reports whether semantic scoring is defined for the user.
func (u *User) HasPreferenceVector() bool {
	return len(u.PreferenceVector) > 0
}

// Reaction is a user's verdict on a notified listing.
type Reaction string

const (
	ReactionLike    Reaction = "like"
	ReactionDislike Reaction = "dislike"
)

// Valid reports whether the reaction is one of the known verdicts.
func (r Reaction) Valid() bool {
	return r == ReactionLike || r == ReactionDislike
}

// Feedback is one (user, listing) reaction. The feedback ledger keeps at most
// one per pair, last write wins.
type Feedback struct {
	UserID    string    `json:"user_id"`
	ListingID string    `json:"listing_id"`
	Reaction  Reaction  `json:"reaction"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}
