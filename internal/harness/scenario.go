package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a reconciliation test scenario: one complete inline
// batch plus expectations about its outcome.
type Scenario struct {
	// Name uniquely identifies this scenario; it names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// BatchToken is the fixed batch token for deterministic output.
	// If empty, defaults to "test-batch-default".
	BatchToken string `yaml:"batch_token,omitempty"`

	// Sends, Opens, and Contacts are the batch content, in source order.
	Sends    []SendRow    `yaml:"sends"`
	Opens    []OpenRow    `yaml:"opens,omitempty"`
	Contacts []ContactRow `yaml:"contacts,omitempty"`

	// Expect holds outcome expectations. If nil, only golden comparison
	// applies.
	Expect *Expectations `yaml:"expect,omitempty"`
}

// SendRow is one send event in scenario form. Timestamps use the export
// layout ("02/01/2006 15:04:05").
type SendRow struct {
	IdentityKey string            `yaml:"identity_key"`
	Email       string            `yaml:"email"`
	OrgKey      string            `yaml:"org_key"`
	Sender      string            `yaml:"sender,omitempty"`
	Timestamp   string            `yaml:"timestamp"`
	Attrs       map[string]string `yaml:"attrs,omitempty"`
}

// OpenRow is one open event in scenario form.
type OpenRow struct {
	IdentityKey string `yaml:"identity_key"`
	Timestamp   string `yaml:"timestamp"`
	Views       int    `yaml:"views"`
	Clicks      int    `yaml:"clicks"`
	LastOpened  string `yaml:"last_opened,omitempty"`
}

// ContactRow is one directory entry in scenario form.
type ContactRow struct {
	Email  string            `yaml:"email"`
	OrgKey string            `yaml:"org_key,omitempty"`
	Attrs  map[string]string `yaml:"attrs,omitempty"`
}

// Expectations are checked against the pipeline result after the run.
// Zero-valued fields with their present flag unset are not checked;
// the counts use pointers so "expect zero" and "don't check" stay distinct.
type Expectations struct {
	// Enriched is the expected number of reconciled records.
	Enriched *int `yaml:"enriched,omitempty"`

	// Failures maps failure reason to expected count.
	Failures map[string]int `yaml:"failures,omitempty"`

	// Orgs is the expected registry size.
	Orgs *int `yaml:"orgs,omitempty"`

	// Records are per-record expectations, matched by identity key.
	Records []RecordExpect `yaml:"records,omitempty"`
}

// RecordExpect pins fields of one enriched record, located by identity
// key. Only non-nil fields are checked.
type RecordExpect struct {
	IdentityKey string  `yaml:"identity_key"`
	Offset      *int    `yaml:"offset,omitempty"`
	Views       *int    `yaml:"views,omitempty"`
	Clicks      *int    `yaml:"clicks,omitempty"`
	OrgID       *int    `yaml:"org_id,omitempty"`
	OrgKey      *string `yaml:"org_key,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like
	// "send:" vs "sends:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Sends) == 0 {
		return fmt.Errorf("sends list is required and must be non-empty")
	}

	for i, row := range s.Sends {
		if row.IdentityKey == "" {
			return fmt.Errorf("sends[%d]: identity_key is required", i)
		}
		if row.Email == "" {
			return fmt.Errorf("sends[%d]: email is required", i)
		}
		if row.Timestamp == "" {
			return fmt.Errorf("sends[%d]: timestamp is required", i)
		}
	}
	for i, row := range s.Opens {
		if row.IdentityKey == "" {
			return fmt.Errorf("opens[%d]: identity_key is required", i)
		}
		if row.Timestamp == "" {
			return fmt.Errorf("opens[%d]: timestamp is required", i)
		}
		if row.Views < 0 || row.Clicks < 0 {
			return fmt.Errorf("opens[%d]: counters must be non-negative", i)
		}
	}
	for i, row := range s.Contacts {
		if row.Email == "" {
			return fmt.Errorf("contacts[%d]: email is required", i)
		}
	}

	if s.Expect != nil {
		for i, re := range s.Expect.Records {
			if re.IdentityKey == "" {
				return fmt.Errorf("expect.records[%d]: identity_key is required", i)
			}
		}
	}
	return nil
}
