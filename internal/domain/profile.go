package domain

import "time"

type FitnessLevel string

const (
	LevelBeginner     FitnessLevel = "beginner"
	LevelIntermediate FitnessLevel = "intermediate"
	LevelAdvanced     FitnessLevel = "advanced"
)

type WeightUnit string

const (
	UnitKg  WeightUnit = "kg"
	UnitLbs WeightUnit = "lbs"
)

// UserProfile holds the coaching inputs for one user. UserID is the
// ownership anchor for all working state derived from it.
type UserProfile struct {
	UserID        string       `bson:"userId" json:"user_id"`
	Goal          string       `bson:"goal" json:"goal"`
	Equipment     []string     `bson:"equipment" json:"equipment"`
	Level         FitnessLevel `bson:"level" json:"level"`
	Availability  string       `bson:"availability" json:"availability"`
	Limitations   string       `bson:"limitations,omitempty" json:"limitations,omitempty"`
	InitialWeight float64      `bson:"initialWeight" json:"initialWeight"`
	TargetWeight  float64      `bson:"targetWeight" json:"targetWeight"`
	CurrentWeight float64      `bson:"currentWeight,omitempty" json:"current_weight,omitempty"`
	Unit          WeightUnit   `bson:"unit" json:"unit"`
	UpdatedAt     time.Time    `bson:"updatedAt" json:"updatedAt"`
}

// IsComplete reports whether onboarding has been finished. A goal is the
// only hard requirement.
func (p *UserProfile) IsComplete() bool {
	return p != nil && p.Goal != ""
}
