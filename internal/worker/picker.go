package worker

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"
)

// Picker выбирает индекс вопроса из n > 0 вариантов.
//
// Любой индекс должен быть достижим с ненулевой вероятностью.
type Picker interface {
	Pick(n int) int
}

// lockedRand — генератор, безопасный для нескольких горутин.
type lockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// newLockedRand создаёт генератор. seed == 0 — случайный seed.
func newLockedRand(seed uint64) *lockedRand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &lockedRand{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (r *lockedRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.IntN(n)
}

func (r *lockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Float64()
}

// RandomPicker — равномерный случайный выбор.
type RandomPicker struct {
	rnd *lockedRand
}

// NewRandomPicker создаёт RandomPicker. seed == 0 — случайный seed;
// одинаковый seed даёт одинаковую последовательность.
func NewRandomPicker(seed uint64) *RandomPicker {
	return &RandomPicker{rnd: newLockedRand(seed)}
}

// Pick возвращает случайный индекс в [0, n).
func (p *RandomPicker) Pick(n int) int {
	if n <= 1 {
		return 0
	}
	return p.rnd.IntN(n)
}

// RoundRobinPicker — детерминированный обход по кругу.
type RoundRobinPicker struct {
	next atomic.Uint64
}

// Pick возвращает следующий индекс по кругу.
func (p *RoundRobinPicker) Pick(n int) int {
	if n <= 1 {
		return 0
	}
	return int((p.next.Add(1) - 1) % uint64(n))
}
