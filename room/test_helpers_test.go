package room

import (
	"math/rand"
	"time"
)

func rngWithSeed(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func zeroTiming() AnimationTiming {
	return AnimationTiming{}
}

func noSleep(time.Duration) {}
