package domain

// Exercise is one trainable movement instance inside a WorkoutPlan.
// Sets, Reps and Duration are advisory free text ("3", "8-12", "5 min").
type Exercise struct {
	Name     string `bson:"name" json:"name"`
	Sets     string `bson:"sets,omitempty" json:"sets,omitempty"`
	Reps     string `bson:"reps,omitempty" json:"reps,omitempty"`
	Duration string `bson:"duration,omitempty" json:"duration,omitempty"`
	Notes    string `bson:"notes,omitempty" json:"notes,omitempty"`
}
