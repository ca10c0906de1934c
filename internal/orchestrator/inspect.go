package orchestrator

import (
	"context"

	"github.com/tinafang86/OM-to-ROI-data-process/internal/converter"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/discovery"
)

// Inspect reads input and reports how its header row would be classified.
// Nothing is written and nothing is audited.
func (o *Orchestrator) Inspect(ctx context.Context, input string) (*discovery.Report, error) {
	grid, err := o.read(ctx, input)
	if err != nil {
		return nil, err
	}
	if len(grid.Rows) == 0 {
		return nil, &converter.ConvertError{Type: converter.EmptyOrMalformedInput, Rows: 0}
	}
	return discovery.Inspect(grid.Rows[0], o.vocab), nil
}
