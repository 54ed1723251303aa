package pipeline

import "token_analyst/sentiment"

// FavourableConcentration is the top-holder share below which whales are not
// considered able to dominate price.
const FavourableConcentration = 0.2

const (
	PositiveSum = "Positive-sum game: Conditions are favorable for retail and whales."
	ZeroSum     = "Zero-sum game: High risk of manipulation or conflict of interest."
)

// StrategicRead weighs whale concentration against authentic sentiment.
// Missing inputs count as unfavourable.
func StrategicRead(s *sentiment.Result, concentration *float64) string {
	if s == nil || concentration == nil {
		return ZeroSum
	}
	if s.AuthenticSentiment == sentiment.Bullish && *concentration < FavourableConcentration {
		return PositiveSum
	}
	return ZeroSum
}
