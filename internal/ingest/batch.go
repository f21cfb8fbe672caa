package ingest

import (
	"fmt"
	"os"

	"github.com/roach88/tally/internal/record"
)

// Batch is the normalized content of one manifest: every source's events
// merged in manifest order, plus the shared contact directory.
type Batch struct {
	Sends    []record.SendEvent
	Opens    []record.OpenEvent
	Contacts []record.Contact
}

// LoadBatch reads every file the manifest names and returns the merged
// batch. Sends and opens keep manifest source order, then file order within
// each source, so downstream tie-breaks are stable across runs.
//
// All row errors across all files are collected into one *ValidationError;
// a batch with any bad row is rejected whole rather than partially loaded.
func LoadBatch(m *Manifest) (*Batch, error) {
	var batch Batch
	var rowErrs []RowError

	for _, src := range m.Sources {
		sends, errs, err := readFile(src.Send, func(f *os.File) ([]record.SendEvent, []RowError) {
			return ReadSendEvents(f, src.Send, src.Name)
		})
		if err != nil {
			return nil, err
		}
		batch.Sends = append(batch.Sends, sends...)
		rowErrs = append(rowErrs, errs...)

		opens, errs, err := readFile(src.Open, func(f *os.File) ([]record.OpenEvent, []RowError) {
			return ReadOpenEvents(f, src.Open)
		})
		if err != nil {
			return nil, err
		}
		batch.Opens = append(batch.Opens, opens...)
		rowErrs = append(rowErrs, errs...)
	}

	contacts, errs, err := readFile(m.Contacts, func(f *os.File) ([]record.Contact, []RowError) {
		return ReadContacts(f, m.Contacts)
	})
	if err != nil {
		return nil, err
	}
	batch.Contacts = contacts
	rowErrs = append(rowErrs, errs...)

	if len(rowErrs) > 0 {
		return nil, &ValidationError{Rows: rowErrs}
	}
	return &batch, nil
}

func readFile[T any](path string, parse func(*os.File) ([]T, []RowError)) ([]T, []RowError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	out, errs := parse(f)
	return out, errs, nil
}
