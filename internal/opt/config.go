package opt

// Config carries every tuning constant of the engine. It is passed by value
// into each call; nothing in this package reads global tuning state.
type Config struct {
	// Workers bounds the parallel evaluation passes; 0 means GOMAXPROCS.
	Workers int `yaml:"workers" json:"workers" validate:"gte=0"`
	// Strategy is the refinement used by the planner after sequencing.
	Strategy Strategy `yaml:"strategy" json:"strategy" validate:"omitempty,oneof=genetic annealing twoopt none"`
	// Start selects the sequencer's first stop.
	Start StartStrategy `yaml:"sequencerStart" json:"sequencerStart" validate:"omitempty,oneof=centroid first"`

	KMeans    KMeansConfig    `yaml:"kmeans" json:"kmeans"`
	Genetic   GeneticConfig   `yaml:"genetic" json:"genetic"`
	Annealing AnnealingConfig `yaml:"annealing" json:"annealing"`
	Route     RouteConfig     `yaml:"route" json:"route"`
	Capacity  CapacityConfig  `yaml:"capacity" json:"capacity"`
}

type KMeansConfig struct {
	MaxPasses int     `yaml:"maxPasses" json:"maxPasses" validate:"gte=1"`
	Tolerance float64 `yaml:"tolerance" json:"tolerance" validate:"gt=0"`
}

type GeneticConfig struct {
	Population     int     `yaml:"population" json:"population" validate:"gte=2"`
	Generations    int     `yaml:"generations" json:"generations" validate:"gte=1"`
	TournamentSize int     `yaml:"tournamentSize" json:"tournamentSize" validate:"gte=1"`
	CrossoverRate  float64 `yaml:"crossoverRate" json:"crossoverRate" validate:"gte=0,lte=1"`
	MutationRate   float64 `yaml:"mutationRate" json:"mutationRate" validate:"gte=0,lte=1"`
}

type AnnealingConfig struct {
	InitialTemp float64 `yaml:"initialTemp" json:"initialTemp" validate:"gt=0"`
	Cooling     float64 `yaml:"cooling" json:"cooling" validate:"gt=0,lt=1"`
	MinTemp     float64 `yaml:"minTemp" json:"minTemp" validate:"gt=0"`
}

type RouteConfig struct {
	AverageSpeedKph       float64 `yaml:"averageSpeedKph" json:"averageSpeedKph" validate:"gt=0"`
	ServiceMinutesPerStop float64 `yaml:"serviceMinutesPerStop" json:"serviceMinutesPerStop" validate:"gte=0"`
	MinDurationMinutes    int     `yaml:"minDurationMinutes" json:"minDurationMinutes" validate:"gte=0"`
}

type CapacityConfig struct {
	DefaultKg             float64 `yaml:"defaultKg" json:"defaultKg" validate:"gt=0"`
	ExperienceRatePerYear float64 `yaml:"experienceRatePerYear" json:"experienceRatePerYear" validate:"gte=0"`
	MaxExperienceFactor   float64 `yaml:"maxExperienceFactor" json:"maxExperienceFactor" validate:"gte=1"`
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		Strategy: StrategyGenetic,
		Start:    StartCentroid,
		KMeans:   KMeansConfig{MaxPasses: 100, Tolerance: 0.001},
		Genetic: GeneticConfig{
			Population:     50,
			Generations:    100,
			TournamentSize: 3,
			CrossoverRate:  0.8,
			MutationRate:   0.1,
		},
		Annealing: AnnealingConfig{InitialTemp: 1000, Cooling: 0.95, MinTemp: 1.0},
		Route:     RouteConfig{AverageSpeedKph: 30, ServiceMinutesPerStop: 5, MinDurationMinutes: 1},
		Capacity:  CapacityConfig{DefaultKg: 1000, ExperienceRatePerYear: 0.1, MaxExperienceFactor: 1.5},
	}
}
