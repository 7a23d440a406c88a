// Package dataset loads and batches the Moving-MNIST video sequences: 64x64
// grayscale frames, 20 per sequence, split into 10 observed input frames and
// 10 future frames used as labels.
package dataset

import (
	"fmt"
	"math/rand"
)

// Frame geometry of the Moving-MNIST corpus.
const (
	FrameHeight = 64
	FrameWidth  = 64
	SeqLen      = 20
	InputLen    = 10
	OutputLen   = 10
)

// MovingMNIST holds a set of sequences as normalized float32 frames in
// [0, 1], laid out [n, SeqLen, FrameHeight, FrameWidth].
type MovingMNIST struct {
	frames []float32
	n      int
}

// LoadMovingMNIST reads the published mnist_test_seq.npy file: a uint8 array
// of shape (SeqLen, n, 64, 64), sequence-major. Frames are transposed to
// sample-major order and scaled to [0, 1].
func LoadMovingMNIST(path string) (*MovingMNIST, error) {
	shape, raw, err := readNPYUint8(path)
	if err != nil {
		return nil, err
	}
	if len(shape) != 4 || shape[0] != SeqLen || shape[2] != FrameHeight || shape[3] != FrameWidth {
		return nil, fmt.Errorf("unexpected moving-mnist shape %v, want (%d, n, %d, %d)",
			shape, SeqLen, FrameHeight, FrameWidth)
	}

	n := shape[1]
	frameSize := FrameHeight * FrameWidth
	frames := make([]float32, n*SeqLen*frameSize)
	for s := 0; s < SeqLen; s++ {
		for i := 0; i < n; i++ {
			src := raw[(s*n+i)*frameSize : (s*n+i+1)*frameSize]
			dst := frames[(i*SeqLen+s)*frameSize : (i*SeqLen+s+1)*frameSize]
			for j, v := range src {
				dst[j] = float32(v) / 255
			}
		}
	}
	return &MovingMNIST{frames: frames, n: n}, nil
}

// Len returns the number of sequences.
func (d *MovingMNIST) Len() int { return d.n }

// Split partitions the dataset into train and validation subsets; ratio is
// the training fraction.
func (d *MovingMNIST) Split(ratio float64) (train, val *MovingMNIST) {
	if ratio <= 0 || ratio >= 1 {
		panic(fmt.Sprintf("dataset: split ratio %v out of (0, 1)", ratio))
	}
	seqSize := SeqLen * FrameHeight * FrameWidth
	cut := int(float64(d.n) * ratio)
	return &MovingMNIST{frames: d.frames[:cut*seqSize], n: cut},
		&MovingMNIST{frames: d.frames[cut*seqSize:], n: d.n - cut}
}

// sequence returns the frames of sample i.
func (d *MovingMNIST) sequence(i int) []float32 {
	seqSize := SeqLen * FrameHeight * FrameWidth
	return d.frames[i*seqSize : (i+1)*seqSize]
}

// Batch is one training batch: the first InputLen frames of every sequence
// as inputs, the remaining OutputLen frames as labels. Both are flat float32
// in [size, len, 1, FrameHeight, FrameWidth] order.
type Batch struct {
	Inputs []float32
	Labels []float32
	Size   int
}

// InputShape returns the tensor shape of the batch inputs.
func (b *Batch) InputShape() []int {
	return []int{b.Size, InputLen, 1, FrameHeight, FrameWidth}
}

// LabelShape returns the tensor shape of the batch labels.
func (b *Batch) LabelShape() []int {
	return []int{b.Size, OutputLen, 1, FrameHeight, FrameWidth}
}

// Batches cuts the dataset into batches of batchSize, optionally shuffling
// sample order with the given seed. A trailing partial batch is kept.
func (d *MovingMNIST) Batches(batchSize int, shuffle bool, seed int64) []*Batch {
	if batchSize <= 0 {
		panic(fmt.Sprintf("dataset: batch size %d", batchSize))
	}

	order := make([]int, d.n)
	for i := range order {
		order[i] = i
	}
	if shuffle {
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	frameSize := FrameHeight * FrameWidth
	var batches []*Batch
	for start := 0; start < d.n; start += batchSize {
		end := min(start+batchSize, d.n)
		size := end - start
		batch := &Batch{
			Inputs: make([]float32, size*InputLen*frameSize),
			Labels: make([]float32, size*OutputLen*frameSize),
			Size:   size,
		}
		for bi, idx := range order[start:end] {
			seq := d.sequence(idx)
			copy(batch.Inputs[bi*InputLen*frameSize:], seq[:InputLen*frameSize])
			copy(batch.Labels[bi*OutputLen*frameSize:], seq[InputLen*frameSize:])
		}
		batches = append(batches, batch)
	}
	return batches
}
