package detector

import (
	"math/rand/v2"
	"portal/internal/entity"
	"sync"
	"time"
)

var (
	commonClasses = []string{"person", "car", "bicycle", "dog", "cat", "bird"}
	rareClasses   = []string{"horse", "sheep", "cow", "elephant", "truck", "motorcycle"}
)

// Fallback 模型不可用时生成 1~3 个模拟检测结果
type Fallback struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewFallback(rng *rand.Rand) *Fallback {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return &Fallback{rng: rng}
}

func (f *Fallback) Generate() []entity.Detection {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 1 + f.rng.IntN(3)
	out := make([]entity.Detection, 0, n)
	for i := 0; i < n; i++ {
		classes := rareClasses
		if f.rng.Float64() < 0.8 {
			classes = commonClasses
		}
		out = append(out, entity.Detection{
			Class:      classes[f.rng.IntN(len(classes))],
			Confidence: round2(0.65 + f.rng.Float64()*(0.92-0.65)),
			BBox: entity.BoundingBox{
				X:      f.between(10, 200),
				Y:      f.between(10, 200),
				Width:  f.between(80, 250),
				Height: f.between(80, 250),
			},
		})
	}
	return out
}

// between 闭区间 [lo, hi]
func (f *Fallback) between(lo, hi int) int {
	return lo + f.rng.IntN(hi-lo+1)
}
