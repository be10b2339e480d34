package storage

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/pixil98/go-errors"
)

// RecordVersion is the envelope version written by this build.
const RecordVersion = 1

var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

// Record is the on-disk envelope of a single entity. Spec holds the
// codec-encoded persistent fields; Kind names the constructor used to revive
// them.
type Record struct {
	Version uint            `json:"version"`
	ID      string          `json:"id"`
	Kind    string          `json:"kind"`
	Spec    json.RawMessage `json:"spec"`
}

func (r *Record) Validate() error {
	el := errors.NewErrorList()

	if r.Version == 0 {
		el.Add(fmt.Errorf("version must be set"))
	} else if r.Version > RecordVersion {
		el.Add(fmt.Errorf("version %d is newer than supported version %d", r.Version, RecordVersion))
	}

	if r.ID == "" {
		el.Add(fmt.Errorf("id must be set"))
	} else if !ValidID(r.ID) {
		el.Add(fmt.Errorf("id %q must be alphanumeric", r.ID))
	}

	if r.Kind == "" {
		el.Add(fmt.Errorf("kind must be set"))
	}

	if len(r.Spec) == 0 {
		el.Add(fmt.Errorf("spec must be set"))
	}

	return el.Err()
}

// ValidID reports whether id is safe to use as a file name.
func ValidID(id string) bool {
	return identifierPattern.MatchString(id)
}
