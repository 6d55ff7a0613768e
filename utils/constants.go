package utils

// Field geometry. The 1600x900 constants are the normative coordinate space;
// validators derive their bounds from Config, never from literals elsewhere.
const (
	FieldWidth  = 1600
	FieldHeight = 900
	FloorY      = 880

	GoalWidth  = 75
	GoalHeight = 250

	BallRadius   = 25
	PlayerRadius = 30

	InitialBallY = 220

	// BallTrailLen is the ring buffer capacity for the ball trail.
	BallTrailLen = 10
)
