package enums

// RecommendationStrategy selects the product filter used for recommendations.
type RecommendationStrategy string

const (
	RecommendationUser     RecommendationStrategy = "user-based"
	RecommendationProduct  RecommendationStrategy = "product-based"
	RecommendationSimilar  RecommendationStrategy = "similar"
	RecommendationTrending RecommendationStrategy = "trending"
	RecommendationGeneral  RecommendationStrategy = "general"
)

var recommendationStrategies = []RecommendationStrategy{
	RecommendationUser,
	RecommendationProduct,
	RecommendationSimilar,
	RecommendationTrending,
	RecommendationGeneral,
}

func (r RecommendationStrategy) IsValid() bool { return member(r, recommendationStrategies) }

// Short forms accepted by older clients.
var recommendationAliases = map[string]RecommendationStrategy{
	"user":    RecommendationUser,
	"product": RecommendationProduct,
}

// ParseRecommendationStrategy treats empty input as general.
func ParseRecommendationStrategy(value string) (RecommendationStrategy, error) {
	if value == "" {
		return RecommendationGeneral, nil
	}
	if alias, ok := recommendationAliases[value]; ok {
		return alias, nil
	}
	return parse("recommendation strategy", value, recommendationStrategies)
}
