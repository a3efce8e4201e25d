package consumers

import (
	"strconv"

	"github.com/pk5ls20/echo/gladiator"
)

// resourceExtID is the Resource extension's stable wire id.
const resourceExtID = 1

// ResourceIDExtractor collects referenced resource ids from permitted
// Resource-extension elements. Missing-key and parse-failure cases update
// distinct counters but never stop the pipeline.
type ResourceIDExtractor struct {
	ResIDs             []int64
	FailedExtractCount int // echo-ext-meta-res-id attribute missing
	FailedParseCount   int // attribute present but not a valid signed 64-bit integer
}

// Process implements gladiator.Consumer.
func (r *ResourceIDExtractor) Process(el gladiator.Element, _ int) {
	extEl, ok := el.(*gladiator.Extended)
	if !ok {
		return
	}
	if !extEl.HasPermission() || !extEl.ExtPermission {
		return
	}
	if extEl.ExtIDErr != nil || extEl.ExtID != resourceExtID {
		return
	}

	raw, present := gladiator.GetAttr(extEl.N, "echo-ext-meta-res-id")
	if !present {
		r.FailedExtractCount++
		return
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		r.FailedParseCount++
		return
	}
	r.ResIDs = append(r.ResIDs, id)
}
