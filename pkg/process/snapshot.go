// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package process

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/indigo423/kuwaiba-sub029/pkg/process/model"
	"github.com/indigo423/kuwaiba-sub029/pkg/process/runtime"
)

// InterruptedShareKey marks artifacts of activities that are no longer on the path of their instance.
const InterruptedShareKey = "__interrupted__"

func startElement(name string, attrs ...string) xml.StartElement {
	se := xml.StartElement{Name: xml.Name{Local: name}}
	for i := 0; i+1 < len(attrs); i += 2 {
		se.Attr = append(se.Attr, xml.Attr{Name: xml.Name{Local: attrs[i]}, Value: attrs[i+1]})
	}
	return se
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func sortArtifacts(artifacts []runtime.Artifact) {
	slices.SortFunc(artifacts, func(a, b runtime.Artifact) int {
		if c := a.CreationDate.Compare(b.CreationDate); c != 0 {
			return c
		}
		return strings.Compare(a.ArtifactDefinitionId, b.ArtifactDefinitionId)
	})
}

// writeSnapshot serializes the artifacts of an instance ordered by creation date.
func writeSnapshot(artifacts map[string]runtime.Artifact) ([]byte, error) {
	sorted := make([]runtime.Artifact, 0, len(artifacts))
	for _, a := range artifacts {
		sorted = append(sorted, a)
	}
	sortArtifacts(sorted)

	var buf bytes.Buffer
	e := xml.NewEncoder(&buf)
	root := startElement("processInstance")
	list := startElement("artifacts")
	tokens := []xml.Token{root, list}
	for _, a := range sorted {
		se := startElement("artifact",
			"id", strconv.FormatInt(a.Id, 10),
			"name", a.Name,
			"contentType", a.ContentType,
			"artifactDefinitionId", a.ArtifactDefinitionId,
			"creationDate", formatDate(a.CreationDate),
			"commitDate", formatDate(a.CommitDate),
		)
		content := startElement("content")
		shares := startElement("shares")
		tokens = append(tokens, se,
			content, xml.CharData(base64.StdEncoding.EncodeToString(a.Content)), content.End(),
			shares)
		for _, p := range a.SharedInformation {
			share := startElement("share", "key", p.Key, "value", p.Value)
			tokens = append(tokens, share, share.End())
		}
		tokens = append(tokens, shares.End(), se.End())
	}
	tokens = append(tokens, list.End(), root.End())

	for _, t := range tokens {
		if err := e.EncodeToken(t); err != nil {
			return nil, fmt.Errorf("failed to write process instance snapshot: %w", err)
		}
	}
	if err := e.Flush(); err != nil {
		return nil, fmt.Errorf("failed to write process instance snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// readSnapshot parses a snapshot written by writeSnapshot, empty data holds no artifacts.
func readSnapshot(data []byte) ([]runtime.Artifact, error) {
	var res []runtime.Artifact
	if len(bytes.TrimSpace(data)) == 0 {
		return res, nil
	}
	d := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read process instance snapshot: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "artifact" {
			continue
		}
		artifact, err := readArtifact(d, se)
		if err != nil {
			return nil, err
		}
		res = append(res, artifact)
	}
}

func readArtifact(d *xml.Decoder, se xml.StartElement) (runtime.Artifact, error) {
	a := runtime.Artifact{
		Name:                 attr(se, "name"),
		ContentType:          attr(se, "contentType"),
		ArtifactDefinitionId: attr(se, "artifactDefinitionId"),
	}
	if id := attr(se, "id"); id != "" {
		v, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return a, fmt.Errorf("invalid artifact id %q in process instance snapshot: %w", id, err)
		}
		a.Id = v
	}
	for name, target := range map[string]*time.Time{"creationDate": &a.CreationDate, "commitDate": &a.CommitDate} {
		if v := attr(se, name); v != "" {
			t, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return a, fmt.Errorf("invalid %s %q in process instance snapshot: %w", name, v, err)
			}
			*target = t
		}
	}

	for {
		tok, err := d.Token()
		if err != nil {
			return a, fmt.Errorf("failed to read process instance snapshot: %w", err)
		}
		switch t := tok.(type) {
		case xml.EndElement:
			if t.Name.Local == "artifact" {
				return a, nil
			}
		case xml.StartElement:
			switch t.Name.Local {
			case "content":
				var encoded string
				if err := d.DecodeElement(&encoded, &t); err != nil {
					return a, fmt.Errorf("failed to read artifact content: %w", err)
				}
				content, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
				if err != nil {
					return a, fmt.Errorf("failed to decode artifact content: %w", err)
				}
				if len(content) > 0 {
					a.Content = content
				}
			case "share":
				a.SharedInformation = append(a.SharedInformation, runtime.StringPair{
					Key:   attr(t, "key"),
					Value: attr(t, "value"),
				})
			}
		}
	}
}

// markInterrupted tags the artifacts of activities that were on the previous path and are not on
// the current one. Tags are never removed, a resubmitted artifact replaces the tagged one.
func markInterrupted(pd *model.ProcessDefinition, previousPath []*model.ActivityDefinition, path []*model.ActivityDefinition, artifacts map[string]runtime.Artifact) {
	wasOnPath := make(map[string]bool, len(previousPath))
	for _, a := range previousPath {
		wasOnPath[a.Id] = true
	}
	onPath := make(map[string]bool, len(path))
	for _, a := range path {
		onPath[a.Id] = true
	}
	for id, artifact := range artifacts {
		activity := pd.FindActivityByArtifactDefinition(id)
		if activity == nil || onPath[activity.Id] || !wasOnPath[activity.Id] {
			continue
		}
		if _, ok := artifact.SharedValue(InterruptedShareKey); ok {
			continue
		}
		artifact = artifact.Clone()
		artifact.SetSharedValue(InterruptedShareKey, "true")
		artifacts[id] = artifact
	}
}
