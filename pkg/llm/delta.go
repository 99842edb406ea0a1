package llm

// FinishReasonStop is the finish_reason value that ends a stream.
const FinishReasonStop = "stop"

// Delta is the subset of one streamed chunk the accumulator cares about.
// A nil field means the upstream object did not carry it.
type Delta struct {
	Content      *string
	FinishReason *string
}

// IsStop reports whether the chunk carries finish_reason "stop".
func (d Delta) IsStop() bool {
	return d.FinishReason != nil && *d.FinishReason == FinishReasonStop
}
