package process

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/indigo423/kuwaiba-sub029/internal/translation"
	"github.com/indigo423/kuwaiba-sub029/pkg/process/model"
)

type LoaderOption = func(*loader)

// LoadWithProcessEnginePath sets the root of the form repository, form artifact definitions
// read their payload from {path}/form/definitions/{processDefinitionId}/{artifactDefinitionId}.
func LoadWithProcessEnginePath(path string) LoaderOption {
	return func(l *loader) {
		l.processEnginePath = path
	}
}

func LoadWithTranslator(translator translation.Translator) LoaderOption {
	return func(l *loader) {
		l.translator = translator
	}
}

func LoadWithLogger(logger hclog.Logger) LoaderOption {
	return func(l *loader) {
		l.logger = logger
	}
}

type loader struct {
	processEnginePath string
	translator        translation.Translator
	logger            hclog.Logger

	pd *model.ProcessDefinition
	// activity ids in document order, the link phase walks them in this order
	order []string
	paths map[string][]string
	// raw sequence flow attributes, resolved in the link phase
	sequenceFlows map[string]string
}

// LoadProcessDefinition builds the activity graph of a process definition document.
//
// The document is read in one pass collecting activities, actors, kpis and paths by id. References
// between them are resolved afterwards since the document order does not guarantee that a referenced
// id appears before its use. Any structural problem fails the whole load with a
// ProcessDefinitionMalformedError.
func LoadProcessDefinition(id string, data []byte, options ...LoaderOption) (*model.ProcessDefinition, error) {
	l := &loader{
		translator:    translation.Default(),
		logger:        hclog.Default().Named("process-loader"),
		paths:         map[string][]string{},
		sequenceFlows: map[string]string{},
		pd: &model.ProcessDefinition{
			Id:         id,
			Enabled:    true,
			Definition: data,
			Activities: map[string]*model.ActivityDefinition{},
			Actors:     map[string]*model.Actor{},
			KpiActions: map[string]model.KpiAction{},
		},
	}
	for _, option := range options {
		option(l)
	}

	if err := l.parse(data); err != nil {
		return nil, err
	}
	if err := l.link(); err != nil {
		return nil, err
	}
	return l.pd, nil
}

func (l *loader) malformed(key string, args ...any) error {
	return &ProcessDefinitionMalformedError{
		ProcessDefinitionId: l.pd.Id,
		Msg:                 l.translator.Translate("process.errors.malformed", l.pd.Id, l.translator.Translate(key, args...)),
	}
}

func (l *loader) malformedXml(err error) error {
	return &ProcessDefinitionMalformedError{
		ProcessDefinitionId: l.pd.Id,
		Msg:                 l.translator.Translate("process.errors.malformed", l.pd.Id, l.translator.Translate("process.errors.xml", err.Error())),
		Err:                 err,
	}
}

func (l *loader) parse(data []byte) error {
	d := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := d.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return l.malformedXml(errors.New("no processDefinition element"))
			}
			return l.malformedXml(err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if se.Name.Local != "processDefinition" {
			return l.malformedXml(fmt.Errorf("unexpected root element %s", se.Name.Local))
		}
		return l.parseProcessDefinition(d, se)
	}
}

// children calls fn for every direct child element of the element whose start was just read.
// fn has to consume the child element completely.
func (l *loader) children(d *xml.Decoder, fn func(se xml.StartElement) error) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return l.malformedXml(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if err := fn(t); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

func (l *loader) skip(d *xml.Decoder) error {
	if err := d.Skip(); err != nil {
		return l.malformedXml(err)
	}
	return nil
}

// text returns the character data of the element whose start was just read.
func (l *loader) text(d *xml.Decoder) (string, error) {
	var sb strings.Builder
	depth := 0
	for {
		tok, err := d.Token()
		if err != nil {
			return "", l.malformedXml(err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			if depth == 0 {
				sb.Write(t)
			}
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				return strings.TrimSpace(sb.String()), nil
			}
			depth--
		}
	}
}

func attr(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func boolAttr(se xml.StartElement, name string, def bool) bool {
	v := attr(se, name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// parseDate accepts RFC 3339 timestamps, plain dates and unix milliseconds.
func parseDate(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, true
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.UnixMilli(ms), true
	}
	return time.Time{}, false
}

func (l *loader) parseProcessDefinition(d *xml.Decoder, se xml.StartElement) error {
	pd := l.pd
	pd.Name = attr(se, "name")
	pd.Description = attr(se, "description")
	pd.Version = attr(se, "version")
	pd.Enabled = boolAttr(se, "enabled", true)
	pd.StartActivityId = strings.TrimSpace(attr(se, "startActivityId"))
	if creationDate := attr(se, "creationDate"); creationDate != "" {
		if t, ok := parseDate(creationDate); ok {
			pd.CreationDate = t
		} else {
			l.logger.Debug("ignoring unreadable creation date", "processDefinitionId", pd.Id, "creationDate", creationDate)
		}
	}

	return l.children(d, func(child xml.StartElement) error {
		switch child.Name.Local {
		case "actors":
			return l.parseActors(d)
		case "activityDefinitions":
			return l.children(d, func(a xml.StartElement) error {
				if a.Name.Local != "activityDefinition" {
					return l.skip(d)
				}
				return l.parseActivity(d, a)
			})
		case "kpis":
			kpis, err := l.parseKpis(d)
			if err != nil {
				return err
			}
			pd.Kpis = append(pd.Kpis, kpis...)
			return nil
		case "kpiActions":
			return l.parseKpiActions(d)
		default:
			return l.skip(d)
		}
	})
}

func (l *loader) parseActors(d *xml.Decoder) error {
	return l.children(d, func(se xml.StartElement) error {
		if se.Name.Local == "actor" {
			actor := &model.Actor{
				Id:   strings.TrimSpace(attr(se, "id")),
				Name: attr(se, "name"),
				Type: attr(se, "type"),
			}
			l.pd.Actors[actor.Id] = actor
		}
		return l.skip(d)
	})
}

func (l *loader) parseActivity(d *xml.Decoder, se xml.StartElement) error {
	id := strings.TrimSpace(attr(se, "id"))
	if _, ok := l.pd.Activities[id]; ok {
		return l.malformed("process.errors.duplicate-activity", id)
	}
	activityType, ok := model.ParseActivityType(attr(se, "type"))
	if !ok {
		return l.malformed("process.errors.unknown-activity-type", id, attr(se, "type"))
	}
	activity := &model.ActivityDefinition{
		Id:          id,
		Name:        attr(se, "name"),
		Description: attr(se, "description"),
		Type:        activityType,
		Color:       attr(se, "color"),
		Confirm:     boolAttr(se, "confirm", false),
		Idling:      boolAttr(se, "idling", false),
		ActorId:     strings.TrimSpace(attr(se, "actorId")),
	}
	if activityType == model.ActivityTypeParallel {
		l.sequenceFlows[id] = attr(se, "sequenceFlow")
		activity.Parallel = &model.ParallelFlow{
			IncomingSequenceFlowId: strings.TrimSpace(attr(se, "incomingSequenceFlowId")),
			OutgoingSequenceFlowId: strings.TrimSpace(attr(se, "outgoingSequenceFlowId")),
		}
	}
	l.pd.Activities[id] = activity
	l.order = append(l.order, id)

	return l.children(d, func(child xml.StartElement) error {
		switch child.Name.Local {
		case "paths":
			paths, err := l.parsePaths(d)
			if err != nil {
				return err
			}
			l.paths[id] = append(l.paths[id], paths...)
			return nil
		case "artifactDefinition":
			artifactDefinition, err := l.parseArtifactDefinition(d, child)
			if err != nil {
				return err
			}
			activity.ArtifactDefinition = artifactDefinition
			return nil
		case "kpis":
			kpis, err := l.parseKpis(d)
			if err != nil {
				return err
			}
			activity.Kpis = append(activity.Kpis, kpis...)
			return nil
		default:
			return l.skip(d)
		}
	})
}

func (l *loader) parsePaths(d *xml.Decoder) ([]string, error) {
	var paths []string
	err := l.children(d, func(se xml.StartElement) error {
		if se.Name.Local != "path" {
			return l.skip(d)
		}
		path, err := l.text(d)
		if err != nil {
			return err
		}
		if path != "" {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

func (l *loader) parseArtifactDefinition(d *xml.Decoder, se xml.StartElement) (*model.ArtifactDefinition, error) {
	id := strings.TrimSpace(attr(se, "id"))
	artifactType, ok := model.ParseArtifactType(attr(se, "type"))
	if !ok {
		return nil, l.malformed("process.errors.unknown-artifact-type", id, attr(se, "type"))
	}
	ad := &model.ArtifactDefinition{
		Id:          id,
		Name:        attr(se, "name"),
		Version:     attr(se, "version"),
		Description: attr(se, "description"),
		Type:        artifactType,
	}
	err := l.children(d, func(child xml.StartElement) error {
		var err error
		switch child.Name.Local {
		case "preconditionsScript":
			ad.PreconditionsScript, err = l.text(d)
		case "postconditionsScript":
			ad.PostconditionsScript, err = l.text(d)
		case "sharedInformation":
			err = l.children(d, func(info xml.StartElement) error {
				if info.Name.Local != "information" {
					return l.skip(d)
				}
				key, err := l.text(d)
				if err != nil {
					return err
				}
				if key != "" {
					ad.SharedInformation = append(ad.SharedInformation, key)
				}
				return nil
			})
		default:
			err = l.skip(d)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if ad.Type == model.ArtifactTypeForm {
		ad.Definition = l.readFormDefinition(ad.Id)
	}
	return ad, nil
}

// readFormDefinition returns nil when the form file can not be read.
func (l *loader) readFormDefinition(artifactDefinitionId string) []byte {
	if l.processEnginePath == "" {
		return nil
	}
	path := filepath.Join(l.processEnginePath, "form", "definitions", l.pd.Id, artifactDefinitionId)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.logger.Debug("no form definition file", "path", path)
		} else {
			l.logger.Warn("failed to read form definition", "path", path, "err", err)
		}
		return nil
	}
	return data
}

func (l *loader) parseKpis(d *xml.Decoder) ([]model.Kpi, error) {
	var kpis []model.Kpi
	err := l.children(d, func(se xml.StartElement) error {
		if se.Name.Local != "kpi" {
			return l.skip(d)
		}
		kpi := model.Kpi{
			Name:        attr(se, "name"),
			Description: attr(se, "description"),
			Action:      strings.TrimSpace(attr(se, "action")),
		}
		err := l.children(d, func(child xml.StartElement) error {
			if child.Name.Local != "thresholds" {
				return l.skip(d)
			}
			return l.children(d, func(th xml.StartElement) error {
				if th.Name.Local == "threshold" {
					kpi.Thresholds = append(kpi.Thresholds, model.Threshold{
						Name:  attr(th, "name"),
						Value: strings.TrimSpace(attr(th, "value")),
					})
				}
				return l.skip(d)
			})
		})
		if err != nil {
			return err
		}
		kpis = append(kpis, kpi)
		return nil
	})
	return kpis, err
}

func (l *loader) parseKpiActions(d *xml.Decoder) error {
	return l.children(d, func(se xml.StartElement) error {
		if se.Name.Local != "kpiAction" {
			return l.skip(d)
		}
		action := model.KpiAction{
			Type:        strings.TrimSpace(attr(se, "type")),
			Name:        attr(se, "name"),
			Description: attr(se, "description"),
			Script:      attr(se, "script"),
		}
		// the script may also be given as element text
		text, err := l.text(d)
		if err != nil {
			return err
		}
		if action.Script == "" {
			action.Script = text
		}
		l.pd.KpiActions[action.Type] = action
		return nil
	})
}

func (l *loader) link() error {
	pd := l.pd
	if pd.StartActivityId == "" {
		return l.malformed("process.errors.start-activity-missing")
	}
	if pd.StartActivity() == nil {
		return l.malformed("process.errors.start-activity-not-found", pd.StartActivityId)
	}

	skipped := map[string]bool{}
	for _, id := range l.order {
		activity := pd.Activities[id]
		paths := l.paths[id]
		for _, path := range paths {
			if _, ok := pd.Activities[path]; !ok {
				return l.malformed("process.errors.path-not-found", id, path)
			}
		}

		switch activity.Kind() {
		case model.KindSimple:
			if !activity.IsEnd() && len(paths) > 0 {
				activity.NextActivityId = paths[0]
			}
		case model.KindConditional:
			activity.Conditional = &model.ConditionalBranch{}
			if len(paths) == 2 {
				activity.Conditional.IfTrueActivityId = paths[0]
				activity.Conditional.IfFalseActivityId = paths[1]
			} else {
				skipped[id] = true
				l.logger.Warn("conditional activity does not have exactly two paths, its branches stay unresolved",
					"processDefinitionId", pd.Id, "activityId", id, "paths", len(paths))
			}
		case model.KindParallel:
			sequenceFlow, ok := model.ParseSequenceFlow(l.sequenceFlows[id])
			if !ok {
				return l.malformed("process.errors.unknown-sequence-flow", id, l.sequenceFlows[id])
			}
			activity.Parallel.SequenceFlow = sequenceFlow
			activity.Parallel.Paths = paths
			for _, ref := range []string{activity.Parallel.IncomingSequenceFlowId, activity.Parallel.OutgoingSequenceFlowId} {
				if _, ok := pd.Activities[ref]; ref != "" && !ok {
					return l.malformed("process.errors.path-not-found", id, ref)
				}
			}
		}

		if _, ok := pd.Actors[activity.ActorId]; activity.ActorId != "" && !ok {
			return l.malformed("process.errors.actor-not-found", id, activity.ActorId)
		}
		for _, kpi := range activity.Kpis {
			if _, ok := pd.KpiActions[kpi.Action]; !ok {
				return l.malformed("process.errors.kpi-action-not-found", kpi.Name, kpi.Action)
			}
		}
	}
	for _, kpi := range pd.Kpis {
		if _, ok := pd.KpiActions[kpi.Action]; !ok {
			return l.malformed("process.errors.kpi-action-not-found", kpi.Name, kpi.Action)
		}
	}

	l.linkForkJoin()
	return l.checkEndReachable(skipped)
}

// linkForkJoin completes the back references of fork/join pairs declared on one side only.
func (l *loader) linkForkJoin() {
	for _, id := range l.order {
		activity := l.pd.Activities[id]
		switch {
		case activity.IsJoin() && activity.Parallel.IncomingSequenceFlowId != "":
			fork := l.pd.Activities[activity.Parallel.IncomingSequenceFlowId]
			if fork.IsFork() && fork.Parallel.OutgoingSequenceFlowId == "" {
				fork.Parallel.OutgoingSequenceFlowId = id
			}
		case activity.IsFork() && activity.Parallel.OutgoingSequenceFlowId != "":
			join := l.pd.Activities[activity.Parallel.OutgoingSequenceFlowId]
			if join.IsJoin() && join.Parallel.IncomingSequenceFlowId == "" {
				join.Parallel.IncomingSequenceFlowId = id
			}
		}
	}
}

// checkEndReachable verifies every activity reachable from the start can reach an end activity.
// Conditionals with unresolved branches are exempt.
func (l *loader) checkEndReachable(skipped map[string]bool) error {
	pd := l.pd
	reachesEnd := map[string]bool{}
	for id, activity := range pd.Activities {
		if activity.IsEnd() || skipped[id] {
			reachesEnd[id] = true
		}
	}
	for changed := true; changed; {
		changed = false
		for id, activity := range pd.Activities {
			if reachesEnd[id] {
				continue
			}
			for _, next := range activity.Successors() {
				if reachesEnd[next] {
					reachesEnd[id] = true
					changed = true
					break
				}
			}
		}
	}

	for _, activity := range reachableActivities(pd) {
		if !reachesEnd[activity.Id] {
			return l.malformed("process.errors.end-unreachable", activity.Id)
		}
	}
	return nil
}

// reachableActivities flattens the graph by a depth first walk from the start activity,
// every activity is listed once.
func reachableActivities(pd *model.ProcessDefinition) []*model.ActivityDefinition {
	var res []*model.ActivityDefinition
	visited := map[string]bool{}
	var visit func(id string)
	visit = func(id string) {
		activity := pd.Activity(id)
		if activity == nil || visited[id] {
			return
		}
		visited[id] = true
		res = append(res, activity)
		for _, next := range activity.Successors() {
			visit(next)
		}
	}
	visit(pd.StartActivityId)
	return res
}
