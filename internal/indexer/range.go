package indexer

import "fmt"

// BlockRange represents an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

// NextRange computes the next window for a pairing. The lower bound is the
// cursor itself, or defaultStart when that is later; the upper bound is
// capped by maxBatch and head. ok is false when there is nothing new.
func NextRange(cursor, defaultStart, head, maxBatch uint64) (BlockRange, bool, error) {
	if maxBatch == 0 {
		return BlockRange{}, false, fmt.Errorf("batch size must be greater than zero")
	}
	from := cursor
	if defaultStart > from {
		from = defaultStart
	}
	if head <= from {
		return BlockRange{}, false, nil
	}
	to := head
	if head-from > maxBatch {
		to = from + maxBatch
	}
	return BlockRange{From: from, To: to}, true, nil
}

// SplitRange splits a block range into batches of size batchSize.
func SplitRange(from, to, batchSize uint64) ([]BlockRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block must be >= from block")
	}

	ranges := make([]BlockRange, 0)
	start := from
	for start <= to {
		remaining := to - start + 1
		var end uint64
		if remaining <= batchSize {
			end = to
		} else {
			end = start + batchSize - 1
		}
		ranges = append(ranges, BlockRange{From: start, To: end})
		if end == to {
			break
		}
		start = end + 1
	}

	return ranges, nil
}
