package rocket

// Tutorial rocket values.
const (
	TutorialPayloadMass        = 1000.0
	TutorialDragCoefficient    = 0.3
	TutorialCrossSectionalArea = 10.0
	TutorialHeight             = 30.0
)

// TutorialStages returns the two stages of the default vehicle, fully fuelled.
func TutorialStages() []Stage {
	return []Stage{
		NewStage("Booster", 480000, 265, 300, 25000, 3000),
		NewStage("Upper", 120000, 300, 335, 5000, 1200),
	}
}

// TutorialRocket builds the default two-stage vehicle with the first stage
// active.
func TutorialRocket() *Configuration {
	c, err := NewConfiguration(
		TutorialStages(),
		TutorialPayloadMass,
		TutorialDragCoefficient,
		TutorialCrossSectionalArea,
		TutorialHeight,
	)
	if err != nil {
		panic(err)
	}
	return c
}
