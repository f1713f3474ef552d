package testsessions

import "time"

// HTTP status code constants.
const (
	StatusOK       = 200
	StatusCreated  = 201
	StatusAccepted = 202
)

// Worker configuration constants.
const (
	VisitChannelMultiplier = 2
)

// Runner configuration constants.
const (
	PercentageMultiplier = 100
	SettleDelay          = 2 * time.Second
)
