package dataset

import "math/rand"

// Synthetic generates Moving-MNIST-like sequences with bouncing bright
// squares instead of digits. Useful for smoke tests and demos when the real
// corpus is not on disk; the geometry and value range match the real data.
func Synthetic(n, sprites int, seed int64) *MovingMNIST {
	if sprites <= 0 {
		sprites = 2
	}
	rng := rand.New(rand.NewSource(seed))

	const spriteSize = 12
	frameSize := FrameHeight * FrameWidth
	frames := make([]float32, n*SeqLen*frameSize)

	for i := 0; i < n; i++ {
		// Per-sprite position and velocity, in pixels per frame.
		xs := make([]float64, sprites)
		ys := make([]float64, sprites)
		vxs := make([]float64, sprites)
		vys := make([]float64, sprites)
		for s := range xs {
			xs[s] = rng.Float64() * float64(FrameWidth-spriteSize)
			ys[s] = rng.Float64() * float64(FrameHeight-spriteSize)
			vxs[s] = (rng.Float64()*2 - 1) * 4
			vys[s] = (rng.Float64()*2 - 1) * 4
		}

		for t := 0; t < SeqLen; t++ {
			frame := frames[(i*SeqLen+t)*frameSize : (i*SeqLen+t+1)*frameSize]
			for s := range xs {
				x0, y0 := int(xs[s]), int(ys[s])
				for dy := 0; dy < spriteSize; dy++ {
					for dx := 0; dx < spriteSize; dx++ {
						frame[(y0+dy)*FrameWidth+(x0+dx)] = 1
					}
				}

				xs[s] += vxs[s]
				ys[s] += vys[s]
				if xs[s] < 0 {
					xs[s], vxs[s] = -xs[s], -vxs[s]
				}
				if max := float64(FrameWidth - spriteSize); xs[s] > max {
					xs[s], vxs[s] = 2*max-xs[s], -vxs[s]
				}
				if ys[s] < 0 {
					ys[s], vys[s] = -ys[s], -vys[s]
				}
				if max := float64(FrameHeight - spriteSize); ys[s] > max {
					ys[s], vys[s] = 2*max-ys[s], -vys[s]
				}
			}
		}
	}
	return &MovingMNIST{frames: frames, n: n}
}
