package render

import (
	"context"
	"encoding/json"

	"go.ngs.io/ocean-wms/internal/domain"
)

// MinMax is the GetMetadata minmax document.
type MinMax struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

func (e *Engine) metadata(ctx context.Context, in Input) (Output, error) {
	if in.Job.Item != "minmax" {
		return Output{}, domain.ValidationError("item", "unsupported metadata item %q", in.Job.Item)
	}
	vw, err := newView(in)
	if err != nil {
		return Output{}, err
	}

	var doc MinMax
	if vw.visible() {
		field, err := scalarField(ctx, in, in.Layers[0], mapTimeIndex(in.Job))
		if err != nil {
			return Output{}, err
		}
		r, err := sample(ctx, vw, newSampler(in.Topology, field, false))
		if err != nil {
			return Output{}, err
		}
		if lo, hi, ok := DataRange(r.v, false); ok {
			doc.Min, doc.Max = &lo, &hi
		}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return Output{}, err
	}
	return Output{Data: data, ContentType: string(domain.FormatJSON)}, nil
}
