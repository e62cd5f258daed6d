package facts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/upi-karir/karir/engine/domain"
	"github.com/upi-karir/karir/engine/onet"
)

// Row keys used for jurusan feed items.
const (
	ColProgramCode    = "kodepst"
	ColProgramName    = "namapst"
	ColProgramFaculty = "fakultas"
	ColProgramLevel   = "jenjang"
)

// Emitter converts one raw row into zero or more facts. A row that yields
// nothing returns a *domain.SkipError explaining why.
type Emitter interface {
	Collection() Collection
	// File is the O*NET file the emitter reads, or "" for remote feeds.
	File() string
	// Columns lists the header columns Emit depends on.
	Columns() []string
	Emit(row onet.Row) ([]Fact, error)
}

type emitter struct {
	collection Collection
	file       string
	columns    []string
	emit       func(onet.Row) ([]Fact, error)
}

func (e *emitter) Collection() Collection            { return e.collection }
func (e *emitter) File() string                      { return e.file }
func (e *emitter) Columns() []string                 { return e.columns }
func (e *emitter) Emit(row onet.Row) ([]Fact, error) { return e.emit(row) }

// NewEmitter returns the emitter for c. Fan-out collections require ix;
// passing nil for them is a programming error.
func NewEmitter(c Collection, dict *onet.Dictionary, ix *onet.Index) (Emitter, error) {
	if dict == nil && !c.Remote() {
		return nil, fmt.Errorf("facts: %s emitter needs a dictionary", c)
	}
	if c.NeedsIndex() && ix == nil {
		return nil, fmt.Errorf("facts: %s emitter needs the skill index", c)
	}
	switch c {
	case Occupations:
		return &emitter{c, onet.FileOccupations, []string{onet.ColSOCCode, onet.ColTitle}, occupationEmitter(dict)}, nil
	case Tasks:
		return &emitter{c, onet.FileTasks, []string{onet.ColSOCCode, onet.ColTask}, taskEmitter(dict)}, nil
	case Technologies:
		return &emitter{c, onet.FileTechnologies, []string{onet.ColSOCCode, onet.ColExample}, technologyEmitter(dict)}, nil
	case Skills:
		return &emitter{c, onet.FileSkills, attributeColumns, attributeEmitter(Skills, dict)}, nil
	case Knowledge:
		return &emitter{c, onet.FileKnowledge, attributeColumns, attributeEmitter(Knowledge, dict)}, nil
	case Relations:
		return &emitter{c, onet.FileRelated, []string{onet.ColSOCCode, onet.ColRelatedSOCCode}, relationEmitter(dict)}, nil
	case JobZones:
		return &emitter{c, onet.FileJobZones, []string{onet.ColSOCCode, onet.ColJobZone}, jobZoneEmitter(dict)}, nil
	case WorkActivities:
		return &emitter{c, onet.FileSkillsToActivities,
			[]string{onet.ColSkillsElementID, onet.ColSkillsElement, onet.ColActivityElement},
			skillLinkEmitter(WorkActivities, onet.ColActivityElement, dict, ix)}, nil
	case WorkContext:
		return &emitter{c, onet.FileSkillsToWorkContext,
			[]string{onet.ColSkillsElementID, onet.ColSkillsElement, onet.ColContextElement},
			skillLinkEmitter(WorkContext, onet.ColContextElement, dict, ix)}, nil
	case Jurusan:
		return &emitter{c, "", []string{ColProgramName}, programEmitter()}, nil
	default:
		return nil, fmt.Errorf("facts: %q: %w", c, domain.ErrUnknownSourceType)
	}
}

var attributeColumns = []string{onet.ColSOCCode, onet.ColElementID, onet.ColElementName, onet.ColScaleID, onet.ColDataValue}

// single builds one fact or converts the construction failure into a skip.
func single(c Collection, key, text string, p Payload) ([]Fact, error) {
	f, err := New(text, p)
	if err != nil {
		return nil, domain.NewSkip(string(c), key, text, reasonOf(err))
	}
	return []Fact{f}, nil
}

func reasonOf(err error) error {
	switch {
	case errors.Is(err, domain.ErrEmptyText):
		return domain.ErrEmptyText
	case errors.Is(err, domain.ErrMalformedRow):
		return err
	default:
		return fmt.Errorf("%v: %w", err, domain.ErrMalformedRow)
	}
}

func skip(c Collection, key, text string, reason error) ([]Fact, error) {
	return nil, domain.NewSkip(string(c), key, text, reason)
}

func occupationEmitter(dict *onet.Dictionary) func(onet.Row) ([]Fact, error) {
	return func(row onet.Row) ([]Fact, error) {
		soc := row.Get(onet.ColSOCCode)
		occ, ok := dict.Lookup(soc)
		if !ok {
			return skip(Occupations, soc, row.Get(onet.ColTitle), domain.ErrUnresolvedOccupation)
		}
		return single(Occupations, soc, occ.Description, Occupation{SOCCode: soc, Title: occ.Title, Description: occ.Description})
	}
}

func taskEmitter(dict *onet.Dictionary) func(onet.Row) ([]Fact, error) {
	return func(row onet.Row) ([]Fact, error) {
		soc := row.Get(onet.ColSOCCode)
		task := row.Get(onet.ColTask)
		occ, ok := dict.Lookup(soc)
		if !ok {
			return skip(Tasks, soc, task, domain.ErrUnresolvedOccupation)
		}
		p := Task{SOCCode: soc, OccupationTitle: occ.Title, TaskID: row.Get(onet.ColTaskID), Description: task}
		return single(Tasks, p.Key(), task, p)
	}
}

func technologyEmitter(dict *onet.Dictionary) func(onet.Row) ([]Fact, error) {
	return func(row onet.Row) ([]Fact, error) {
		soc := row.Get(onet.ColSOCCode)
		example := row.Get(onet.ColExample)
		occ, ok := dict.Lookup(soc)
		if !ok {
			return skip(Technologies, soc, example, domain.ErrUnresolvedOccupation)
		}
		p := Technology{
			SOCCode:         soc,
			OccupationTitle: occ.Title,
			Name:            example,
			Category:        row.Get(onet.ColCommodityTitle),
			Hot:             strings.EqualFold(row.Get(onet.ColHotTechnology), "Y"),
		}
		return single(Technologies, p.Key(), example, p)
	}
}

func attributeEmitter(kind Collection, dict *onet.Dictionary) func(onet.Row) ([]Fact, error) {
	return func(row onet.Row) ([]Fact, error) {
		soc := row.Get(onet.ColSOCCode)
		name := row.Get(onet.ColElementName)
		key := soc + "|" + row.Get(onet.ColElementID)
		scale, ok := onet.ScaleName(row.Get(onet.ColScaleID))
		if !ok {
			return skip(kind, key, name, domain.ErrFilteredRow)
		}
		occ, ok := dict.Lookup(soc)
		if !ok {
			return skip(kind, key, name, domain.ErrUnresolvedOccupation)
		}
		value, err := row.Float(onet.ColDataValue)
		if err != nil {
			return skip(kind, key, name, fmt.Errorf("%v: %w", err, domain.ErrMalformedRow))
		}
		p := Attribute{
			Kind:            kind,
			SOCCode:         soc,
			OccupationTitle: occ.Title,
			ElementID:       row.Get(onet.ColElementID),
			Name:            name,
			Scale:           scale,
			Value:           value,
		}
		return single(kind, p.Key(), name, p)
	}
}

func relationEmitter(dict *onet.Dictionary) func(onet.Row) ([]Fact, error) {
	return func(row onet.Row) ([]Fact, error) {
		soc := row.Get(onet.ColSOCCode)
		related := row.Get(onet.ColRelatedSOCCode)
		key := soc + "|" + related
		from, ok := dict.Lookup(soc)
		if !ok {
			return skip(Relations, key, "", domain.ErrUnresolvedOccupation)
		}
		to, ok := dict.Lookup(related)
		if !ok {
			return skip(Relations, key, from.Title, domain.ErrUnresolvedOccupation)
		}
		idx, err := relatedIndex(row)
		if err != nil {
			return skip(Relations, key, from.Title, fmt.Errorf("%v: %w", err, domain.ErrMalformedRow))
		}
		p := Relation{
			SOCCode:      soc,
			Title:        from.Title,
			RelatedSOC:   related,
			RelatedTitle: to.Title,
			Tier:         row.Get(onet.ColRelatednessTier),
			Index:        idx,
		}
		return single(Relations, key, p.Sentence(), p)
	}
}

// relatedIndex reads the rank column, which newer releases call "Index"
// and older ones "Related Index". A file without either ranks as 0.
func relatedIndex(row onet.Row) (int, error) {
	for _, col := range []string{onet.ColIndex, onet.ColRelatedIndex} {
		if row.Get(col) != "" {
			return row.Int(col)
		}
	}
	return 0, nil
}

func jobZoneEmitter(dict *onet.Dictionary) func(onet.Row) ([]Fact, error) {
	return func(row onet.Row) ([]Fact, error) {
		soc := row.Get(onet.ColSOCCode)
		occ, ok := dict.Lookup(soc)
		if !ok {
			return skip(JobZones, soc, row.Get(onet.ColJobZone), domain.ErrUnresolvedOccupation)
		}
		zone, err := row.Int(onet.ColJobZone)
		if err != nil {
			return skip(JobZones, soc, row.Get(onet.ColJobZone), fmt.Errorf("%v: %w", err, domain.ErrMalformedRow))
		}
		p := JobZone{SOCCode: soc, OccupationTitle: occ.Title, Zone: zone}
		return single(JobZones, soc, p.Sentence(), p)
	}
}

// skillLinkEmitter fans one skill row out to every occupation the index
// links to that skill. Unresolved occupations are dropped individually.
func skillLinkEmitter(kind Collection, elementColumn string, dict *onet.Dictionary, ix *onet.Index) func(onet.Row) ([]Fact, error) {
	return func(row onet.Row) ([]Fact, error) {
		skillID := row.Get(onet.ColSkillsElementID)
		skillName := row.Get(onet.ColSkillsElement)
		element := row.Get(elementColumn)
		key := skillID + "|" + element

		socs := ix.Lookup(skillID)
		if len(socs) == 0 {
			return skip(kind, key, skillName, domain.ErrUnresolvedOccupation)
		}
		out := make([]Fact, 0, len(socs))
		var lastErr error
		for _, soc := range socs {
			occ, ok := dict.Lookup(soc)
			if !ok {
				continue
			}
			p := SkillLink{
				Kind:            kind,
				SOCCode:         soc,
				OccupationTitle: occ.Title,
				SkillID:         skillID,
				SkillName:       skillName,
				Element:         element,
			}
			f, err := New(p.Sentence(), p)
			if err != nil {
				lastErr = err
				continue
			}
			out = append(out, f)
		}
		if len(out) == 0 {
			if lastErr != nil {
				return skip(kind, key, skillName, reasonOf(lastErr))
			}
			return skip(kind, key, skillName, domain.ErrUnresolvedOccupation)
		}
		return out, nil
	}
}

// NormalizeProgramName keeps the part of a composite program name before
// the first " - " qualifier.
func NormalizeProgramName(s string) string {
	if i := strings.Index(s, " - "); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func programEmitter() func(onet.Row) ([]Fact, error) {
	return func(row onet.Row) ([]Fact, error) {
		p := Program{
			Code:    row.Get(ColProgramCode),
			Name:    NormalizeProgramName(row.Get(ColProgramName)),
			Faculty: row.Get(ColProgramFaculty),
			Level:   row.Get(ColProgramLevel),
		}
		if p.Name == "" {
			return skip(Jurusan, p.Code, row.Get(ColProgramName), domain.ErrEmptyText)
		}
		return single(Jurusan, p.Key(), p.Name, p)
	}
}
