package sensor

import (
	"math/rand"
	"sync"
)

const (
	simulatedMin  = 0
	simulatedMax  = 4095
	simulatedStep = 120
)

// Simulated produces a bounded random walk on a 12-bit scale. It stands in
// for real hardware during development.
type Simulated struct {
	mu    sync.Mutex
	value int
}

func NewSimulated(start int) *Simulated {
	return &Simulated{value: clamp(start, simulatedMin, simulatedMax)}
}

func (*Simulated) Name() string {
	return "simulated"
}

func (s *Simulated) Read() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.value = clamp(s.value+rand.Intn(2*simulatedStep+1)-simulatedStep, simulatedMin, simulatedMax)
	return s.value, nil
}

func (*Simulated) Close() error {
	return nil
}

func clamp(value, minValue, maxValue int) int {
	if value < minValue {
		return minValue
	}

	if value > maxValue {
		return maxValue
	}

	return value
}
