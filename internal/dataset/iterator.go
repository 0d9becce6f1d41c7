package dataset

import (
	"fmt"
	"math/rand"

	"linreg-forge/internal/model"
)

// IteratorOptions configures mini-batch traversal.
type IteratorOptions struct {
	BatchSize int
	Shuffle   bool
	// DropLast discards a final batch shorter than BatchSize. The default
	// keeps it.
	DropLast bool
	Seed     int64
}

// Iterator yields mini-batches covering the dataset once per traversal.
// Reset starts a new traversal; with Shuffle each traversal uses a fresh
// permutation drawn from the seeded source.
type Iterator struct {
	ds    *Dataset
	opts  IteratorOptions
	rng   *rand.Rand
	order []int
	pos   int
}

// NewIterator validates opts and returns an iterator over ds.
func NewIterator(ds *Dataset, opts IteratorOptions) (*Iterator, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, fmt.Errorf("%w: empty dataset", ErrInvalidOptions)
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size must be > 0 (got %d)", ErrInvalidOptions, opts.BatchSize)
	}
	if opts.DropLast && opts.BatchSize > ds.Len() {
		return nil, fmt.Errorf("%w: batch size %d exceeds %d samples with drop-last", ErrInvalidOptions, opts.BatchSize, ds.Len())
	}
	it := &Iterator{ds: ds, opts: opts}
	if opts.Shuffle {
		it.rng = rand.New(rand.NewSource(opts.Seed))
	}
	return it, nil
}

// NumBatches is the number of batches in one traversal.
func (it *Iterator) NumBatches() int {
	n, k := it.ds.Len(), it.opts.BatchSize
	if it.opts.DropLast {
		return n / k
	}
	return (n + k - 1) / k
}

// Reset begins a new traversal.
func (it *Iterator) Reset() {
	it.order = buildOrder(it.ds.Len(), it.rng)
	it.pos = 0
}

// Next returns the next batch, or false once the traversal is exhausted.
// Calling Next before Reset starts the first traversal.
func (it *Iterator) Next() (model.Batch, bool) {
	if it.order == nil {
		it.Reset()
	}
	remaining := len(it.order) - it.pos
	if remaining <= 0 {
		return model.Batch{}, false
	}
	size := it.opts.BatchSize
	if remaining < size {
		if it.opts.DropLast {
			it.pos = len(it.order)
			return model.Batch{}, false
		}
		size = remaining
	}
	indices := it.order[it.pos : it.pos+size]
	it.pos += size

	// indices come from buildOrder and are always in range.
	batch, err := it.ds.Batch(indices)
	if err != nil {
		panic(err)
	}
	return batch, true
}

func buildOrder(n int, rng *rand.Rand) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if rng != nil {
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}
	return order
}
