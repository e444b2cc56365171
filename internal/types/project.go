package types

import (
	"fmt"
	"regexp"
	"time"
)

// Schema identifies how a project's graph is persisted.
type Schema string

const (
	// SchemaLayered is the three-layer document schema.
	SchemaLayered Schema = "layered"

	// SchemaFlat is the legacy single-document node/edge map.
	SchemaFlat Schema = "flat"
)

// ProjectMetadata is the per-project metadata document. CurrentVersion is
// the commit point: a snapshot is current only once metadata names it.
type ProjectMetadata struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Schema         Schema          `json:"schema,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	CurrentVersion string          `json:"current_version"`
	History        []VersionRecord `json:"history,omitempty"`
}

// VersionRecord describes one committed, immutable snapshot.
type VersionRecord struct {
	Version       string    `json:"version"`
	ChangeRequest string    `json:"change_request,omitempty"`
	CommittedAt   time.Time `json:"committed_at"`
	Digest        string    `json:"digest"`
	NodeCount     int       `json:"node_count"`
}

// Record returns the history entry for a version tag.
func (m *ProjectMetadata) Record(version string) (VersionRecord, bool) {
	for _, r := range m.History {
		if r.Version == version {
			return r, true
		}
	}
	return VersionRecord{}, false
}

// AppliedBy returns the version produced by a change request, if any.
func (m *ProjectMetadata) AppliedBy(changeID string) (VersionRecord, bool) {
	for _, r := range m.History {
		if r.ChangeRequest != "" && r.ChangeRequest == changeID {
			return r, true
		}
	}
	return VersionRecord{}, false
}

var projectIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// ValidateProjectID rejects ids that are unsafe as document path segments.
func ValidateProjectID(id string) error {
	if !projectIDPattern.MatchString(id) {
		return fmt.Errorf("invalid project id %q (letters, digits, '.', '_' and '-' only)", id)
	}
	return nil
}
