package harness

import (
	"fmt"

	"github.com/roach88/tally/internal/pipeline"
	"github.com/roach88/tally/internal/record"
)

// DefaultBatchToken is used when a scenario does not fix its own token.
const DefaultBatchToken = "test-batch-default"

// Result bundles the pipeline outcome with the input size for accounting
// checks.
type Result struct {
	Pipeline *pipeline.Result
	Sends    int
}

// Run executes a scenario's batch through the pipeline with a fixed batch
// token. The scenario's expectations are NOT checked here; use Check or
// RunWithGolden.
func Run(scenario *Scenario) (*Result, error) {
	in, err := buildInput(scenario)
	if err != nil {
		return nil, err
	}

	token := scenario.BatchToken
	if token == "" {
		token = DefaultBatchToken
	}

	res, err := pipeline.Run(in, pipeline.NewFixedGenerator(token))
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}
	return &Result{Pipeline: res, Sends: len(in.Sends)}, nil
}

// buildInput converts scenario rows into typed pipeline input. Timestamp
// parsing failures carry the row position so scenario authors can find
// them.
func buildInput(scenario *Scenario) (pipeline.Input, error) {
	var in pipeline.Input

	for i, row := range scenario.Sends {
		ts, err := record.ParseTimestamp(row.Timestamp)
		if err != nil {
			return pipeline.Input{}, fmt.Errorf("sends[%d]: %w", i, err)
		}
		sender := row.Sender
		if sender == "" {
			sender = "test"
		}
		in.Sends = append(in.Sends, record.SendEvent{
			IdentityKey: row.IdentityKey,
			Email:       row.Email,
			OrgKey:      row.OrgKey,
			Sender:      sender,
			Timestamp:   ts,
			Attrs:       record.Attrs(row.Attrs),
		})
	}

	for i, row := range scenario.Opens {
		ts, err := record.ParseTimestamp(row.Timestamp)
		if err != nil {
			return pipeline.Input{}, fmt.Errorf("opens[%d]: %w", i, err)
		}
		last, err := record.ParseOptionalTimestamp(row.LastOpened)
		if err != nil {
			return pipeline.Input{}, fmt.Errorf("opens[%d]: last_opened: %w", i, err)
		}
		in.Opens = append(in.Opens, record.OpenEvent{
			IdentityKey: row.IdentityKey,
			Timestamp:   ts,
			Views:       row.Views,
			Clicks:      row.Clicks,
			LastOpened:  last,
		})
	}

	for _, row := range scenario.Contacts {
		in.Contacts = append(in.Contacts, record.Contact{
			Email:  row.Email,
			OrgKey: row.OrgKey,
			Attrs:  record.Attrs(row.Attrs),
		})
	}

	return in, nil
}
