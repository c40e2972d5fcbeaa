package risk

import (
	"context"
	"math/rand"

	"github.com/i474232898/infrastructure-risk/internal/geo"
	"github.com/i474232898/infrastructure-risk/internal/infrastructure"
	"github.com/i474232898/infrastructure-risk/internal/signals"
)

// Factor names reported in Factors.
const (
	FactorTrafficCongestion = "traffic_congestion"
	FactorWeatherCondition  = "weather_condition"
	FactorInfrastructureAge = "infrastructure_age"
)

// NeutralScore is returned for records that cannot be found.
const NeutralScore = 0.5

const (
	clearWeatherRisk   = 0.5
	adverseWeatherRisk = 0.8
	minSimulatedAge    = 0.3
	maxSimulatedAge    = 0.7
)

// Factors maps a factor name to its normalized contribution.
type Factors map[string]float64

// Update is the batch-update view of one scored record.
type Update struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	RiskScore   float64 `json:"risk_score"`
	RiskFactors Factors `json:"risk_factors"`
}

// WeatherSignal supplies weather that is always available.
type WeatherSignal interface {
	Current(ctx context.Context, c geo.Coordinate) signals.WeatherSnapshot
}

// TrafficSignal supplies traffic that is always available.
type TrafficSignal interface {
	Current(ctx context.Context, c geo.Coordinate) signals.TrafficSnapshot
}

// AgeSampler stands in for real infrastructure age data.
type AgeSampler func() float64

// UniformAge draws uniformly from [0.3, 0.7].
func UniformAge() float64 {
	return minSimulatedAge + rand.Float64()*(maxSimulatedAge-minSimulatedAge)
}

// Scorer combines weather, traffic and age into a per-record risk score.
type Scorer struct {
	weather WeatherSignal
	traffic TrafficSignal
	age     AgeSampler
}

// NewScorer creates a Scorer. A nil age sampler uses UniformAge.
func NewScorer(weather WeatherSignal, traffic TrafficSignal, age AgeSampler) *Scorer {
	if age == nil {
		age = UniformAge
	}
	return &Scorer{weather: weather, traffic: traffic, age: age}
}

// Score looks id up in records and scores it. Unknown ids give
// (NeutralScore, empty Factors).
func (s *Scorer) Score(ctx context.Context, id int, records []infrastructure.Record) (float64, Factors) {
	for _, r := range records {
		if r.ID == id {
			return s.Assess(ctx, r)
		}
	}
	return NeutralScore, Factors{}
}

// Assess fetches the signals for rec and returns the mean of its factors.
// The age factor is resampled on every call, so repeated calls differ.
func (s *Scorer) Assess(ctx context.Context, rec infrastructure.Record) (float64, Factors) {
	traffic := s.traffic.Current(ctx, rec.Location)
	weather := s.weather.Current(ctx, rec.Location)

	weatherRisk := adverseWeatherRisk
	if weather.Condition == "Clear" {
		weatherRisk = clearWeatherRisk
	}

	factors := Factors{
		FactorTrafficCongestion: traffic.CongestionRatio,
		FactorWeatherCondition:  weatherRisk,
		FactorInfrastructureAge: s.age(),
	}
	return mean(factors), factors
}

// UpdateAll rescores every record serially, in order.
func (s *Scorer) UpdateAll(ctx context.Context, records []infrastructure.Record) []Update {
	updates := make([]Update, 0, len(records))
	for _, r := range records {
		score, factors := s.Score(ctx, r.ID, records)
		updates = append(updates, Update{
			ID:          r.ID,
			Name:        r.Name,
			RiskScore:   score,
			RiskFactors: factors,
		})
	}
	return updates
}

func mean(f Factors) float64 {
	if len(f) == 0 {
		return NeutralScore
	}
	var sum float64
	for _, v := range f {
		sum += v
	}
	return sum / float64(len(f))
}
