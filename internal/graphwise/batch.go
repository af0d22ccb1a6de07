package graphwise

// FramingOverhead is the estimated per-text protobuf framing cost in bytes.
const FramingOverhead = 32

// EstimatedSize is the wire-size estimate of one text: its UTF-8 length plus
// the framing overhead.
func EstimatedSize(text string) int {
	return len(text) + FramingOverhead
}

// Split partitions texts into contiguous batches whose estimated size stays
// within budget bytes. A text that alone exceeds budget is emitted as a
// batch of its own. Concatenating the batches yields texts unchanged; empty
// input yields no batches. The batches alias texts.
func Split(texts []string, budget int) [][]string {
	var batches [][]string
	start, size := 0, 0

	for i, text := range texts {
		n := EstimatedSize(text)
		if size+n <= budget {
			size += n
			continue
		}
		if i > start {
			batches = append(batches, texts[start:i:i])
		}
		if n > budget {
			batches = append(batches, texts[i:i+1:i+1])
			start, size = i+1, 0
			continue
		}
		start, size = i, n
	}

	if start < len(texts) {
		batches = append(batches, texts[start:len(texts):len(texts)])
	}
	return batches
}
