package model

import "strings"

type ArtifactType string

const (
	ArtifactTypeForm        ArtifactType = "FORM"
	ArtifactTypeAttachment  ArtifactType = "ATTACHMENT"
	ArtifactTypeConditional ArtifactType = "CONDITIONAL"
)

// ParseArtifactType accepts the type names case-insensitively and the numeric codes
// 1 (form), 2 (attachment) and 3 (conditional).
func ParseArtifactType(s string) (ArtifactType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FORM", "1":
		return ArtifactTypeForm, true
	case "ATTACHMENT", "2":
		return ArtifactTypeAttachment, true
	case "CONDITIONAL", "3":
		return ArtifactTypeConditional, true
	}
	return "", false
}

// ArtifactDefinition is the schema of the data a user submits for an activity.
type ArtifactDefinition struct {
	Id          string
	Name        string
	Version     string
	Description string
	Type        ArtifactType
	// Definition is the payload of the schema, for forms it is read from the form repository
	// and stays nil when no such file exists.
	Definition []byte
	// PreconditionsScript must evaluate to true before the artifact is accepted, empty means no check.
	PreconditionsScript string
	// PostconditionsScript must evaluate to true for the submitted artifact, empty means no check.
	PostconditionsScript string
	// SharedInformation lists the keys the artifact exposes to the rest of the process.
	SharedInformation []string
}
