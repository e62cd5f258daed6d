package facts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/upi-karir/karir/engine/domain"
)

// Provenance tags written to every payload's "source" field.
const (
	SourceOccupationData = "Occupation Data"
	SourceTaskStatements = "Task Statements"
	SourceTechnology     = "Technology Skills"
	SourceSkills         = "Skills"
	SourceKnowledge      = "Knowledge"
	SourceRelated        = "Related Occupations"
	SourceJobZones       = "Job Zones"
	SourceActivities     = "Skills to Work Activities"
	SourceWorkContext    = "Skills to Work Context"
	SourceJurusanAPI     = "API Jurusan Kampus UPI"
)

// Payload is the closed set of per-collection metadata schemas.
type Payload interface {
	Collection() Collection
	// Key is the natural key of the fact within its collection.
	Key() string
	// Fields flattens the payload for storage. Always carries "source".
	Fields() map[string]any
	// Context renders the human-readable line used in answer prompts.
	Context() string
	validate() error
}

func required(collection Collection, fields ...string) error {
	for i := 0; i+1 < len(fields); i += 2 {
		if strings.TrimSpace(fields[i+1]) == "" {
			return fmt.Errorf("%s: %s: %w", collection, fields[i], domain.ErrMalformedRow)
		}
	}
	return nil
}

// Occupation describes an occupation from the master table.
type Occupation struct {
	SOCCode     string
	Title       string
	Description string
}

func (p Occupation) Collection() Collection { return Occupations }
func (p Occupation) Key() string            { return p.SOCCode }

func (p Occupation) Fields() map[string]any {
	return map[string]any{
		"soc_code":    p.SOCCode,
		"title":       p.Title,
		"description": p.Description,
		"source":      SourceOccupationData,
	}
}

func (p Occupation) Context() string {
	return fmt.Sprintf("Pekerjaan: %s\nDeskripsi: %s", p.Title, p.Description)
}

func (p Occupation) validate() error {
	return required(Occupations, "soc_code", p.SOCCode, "title", p.Title)
}

// Task is one task statement bound to its occupation.
type Task struct {
	SOCCode         string
	OccupationTitle string
	TaskID          string
	Description     string
}

func (p Task) Collection() Collection { return Tasks }

func (p Task) Key() string {
	if p.TaskID != "" {
		return p.SOCCode + "|" + p.TaskID
	}
	return p.SOCCode + "|" + p.Description
}

func (p Task) Fields() map[string]any {
	return map[string]any{
		"task_id":          p.TaskID,
		"task_description": p.Description,
		"soc_code":         p.SOCCode,
		"occupation_title": p.OccupationTitle,
		"source":           SourceTaskStatements,
	}
}

func (p Task) Context() string {
	return fmt.Sprintf("Untuk pekerjaan '%s', ada tugas relevan: %s", p.OccupationTitle, p.Description)
}

func (p Task) validate() error {
	return required(Tasks, "soc_code", p.SOCCode, "occupation_title", p.OccupationTitle, "task_description", p.Description)
}

// Technology is a tool or software example used in an occupation.
type Technology struct {
	SOCCode         string
	OccupationTitle string
	Name            string
	Category        string
	Hot             bool
}

func (p Technology) Collection() Collection { return Technologies }
func (p Technology) Key() string            { return p.SOCCode + "|" + p.Name }

func (p Technology) Fields() map[string]any {
	return map[string]any{
		"technology_name":  p.Name,
		"category":         p.Category,
		"hot_technology":   p.Hot,
		"soc_code":         p.SOCCode,
		"occupation_title": p.OccupationTitle,
		"source":           SourceTechnology,
	}
}

func (p Technology) Context() string {
	return fmt.Sprintf("Pekerjaan '%s' menggunakan teknologi: %s", p.OccupationTitle, p.Name)
}

func (p Technology) validate() error {
	return required(Technologies, "soc_code", p.SOCCode, "occupation_title", p.OccupationTitle, "technology_name", p.Name)
}

// Attribute is a rated skill or knowledge element of an occupation.
type Attribute struct {
	Kind            Collection // Skills or Knowledge
	SOCCode         string
	OccupationTitle string
	ElementID       string
	Name            string
	Scale           string // "Importance" or "Level"
	Value           float64
}

func (p Attribute) Collection() Collection { return p.Kind }
func (p Attribute) Key() string            { return p.SOCCode + "|" + p.ElementID + "|" + p.Scale }

func (p Attribute) attributeType() string {
	if p.Kind == Knowledge {
		return "Pengetahuan"
	}
	return "Skill"
}

func (p Attribute) source() string {
	if p.Kind == Knowledge {
		return SourceKnowledge
	}
	return SourceSkills
}

func (p Attribute) Fields() map[string]any {
	return map[string]any{
		"attribute_name":   p.Name,
		"attribute_type":   p.attributeType(),
		"element_id":       p.ElementID,
		"scale":            p.Scale,
		"value":            p.Value,
		"soc_code":         p.SOCCode,
		"occupation_title": p.OccupationTitle,
		"source":           p.source(),
	}
}

func (p Attribute) Context() string {
	noun := "skill"
	if p.Kind == Knowledge {
		noun = "pengetahuan"
	}
	return fmt.Sprintf("Pekerjaan '%s' membutuhkan %s '%s'", p.OccupationTitle, noun, p.Name)
}

func (p Attribute) validate() error {
	if p.Kind != Skills && p.Kind != Knowledge {
		return fmt.Errorf("attribute kind %q: %w", p.Kind, domain.ErrMalformedRow)
	}
	return required(p.Kind, "soc_code", p.SOCCode, "occupation_title", p.OccupationTitle,
		"element_id", p.ElementID, "attribute_name", p.Name, "scale", p.Scale)
}

// Relation links an occupation to a related one. Tier is kept verbatim.
type Relation struct {
	SOCCode      string
	Title        string
	RelatedSOC   string
	RelatedTitle string
	Tier         string
	Index        int
}

func (p Relation) Collection() Collection { return Relations }
func (p Relation) Key() string            { return p.SOCCode + "|" + p.RelatedSOC }

// Sentence is the embedded statement for the relation.
func (p Relation) Sentence() string {
	return fmt.Sprintf("Pekerjaan yang terkait dengan '%s' adalah '%s'.", p.Title, p.RelatedTitle)
}

func (p Relation) Fields() map[string]any {
	return map[string]any{
		"text":             p.Sentence(),
		"soc_code":         p.SOCCode,
		"source_soc_code":  p.SOCCode,
		"source_title":     p.Title,
		"related_soc_code": p.RelatedSOC,
		"related_title":    p.RelatedTitle,
		"relation_tier":    p.Tier,
		"related_index":    p.Index,
		"source":           SourceRelated,
	}
}

func (p Relation) Context() string {
	if p.Tier == "" {
		return p.Sentence()
	}
	return fmt.Sprintf("%s (tingkat keterkaitan: %s)", p.Sentence(), p.Tier)
}

func (p Relation) validate() error {
	return required(Relations, "source_soc_code", p.SOCCode, "source_title", p.Title,
		"related_soc_code", p.RelatedSOC, "related_title", p.RelatedTitle)
}

// JobZone places an occupation in an O*NET preparation zone (1..5).
type JobZone struct {
	SOCCode         string
	OccupationTitle string
	Zone            int
}

func (p JobZone) Collection() Collection { return JobZones }
func (p JobZone) Key() string            { return p.SOCCode }

// Sentence is the embedded statement for the zone.
func (p JobZone) Sentence() string {
	return fmt.Sprintf("Pekerjaan '%s' berada di Job Zone %d. Ini mengindikasikan tingkat persiapan, pengalaman, dan pendidikan yang dibutuhkan untuk karir tersebut.", p.OccupationTitle, p.Zone)
}

func (p JobZone) Fields() map[string]any {
	return map[string]any{
		"text":             p.Sentence(),
		"soc_code":         p.SOCCode,
		"occupation_title": p.OccupationTitle,
		"job_zone":         p.Zone,
		"source":           SourceJobZones,
	}
}

func (p JobZone) Context() string { return p.Sentence() }

func (p JobZone) validate() error {
	if p.Zone < 1 || p.Zone > 5 {
		return fmt.Errorf("job zone %d: %w", p.Zone, domain.ErrMalformedRow)
	}
	return required(JobZones, "soc_code", p.SOCCode, "occupation_title", p.OccupationTitle)
}

// SkillLink ties a skill, in the context of one occupation, to a work
// activity or a work context element.
type SkillLink struct {
	Kind            Collection // WorkActivities or WorkContext
	SOCCode         string
	OccupationTitle string
	SkillID         string
	SkillName       string
	Element         string
}

func (p SkillLink) Collection() Collection { return p.Kind }
func (p SkillLink) Key() string            { return p.SOCCode + "|" + p.SkillID + "|" + p.Element }

// Sentence is the embedded statement for the link.
func (p SkillLink) Sentence() string {
	if p.Kind == WorkContext {
		return fmt.Sprintf("Dalam pekerjaan '%s', skill '%s' diterapkan dalam konteks kerja '%s'.", p.OccupationTitle, p.SkillName, p.Element)
	}
	return fmt.Sprintf("Untuk pekerjaan '%s', skill '%s' relevan dengan aktivitas kerja '%s'.", p.OccupationTitle, p.SkillName, p.Element)
}

func (p SkillLink) Fields() map[string]any {
	src := SourceActivities
	if p.Kind == WorkContext {
		src = SourceWorkContext
	}
	return map[string]any{
		"text":             p.Sentence(),
		"soc_code":         p.SOCCode,
		"occupation_title": p.OccupationTitle,
		"skill_id":         p.SkillID,
		"skill_name":       p.SkillName,
		"element_name":     p.Element,
		"source":           src,
	}
}

func (p SkillLink) Context() string { return p.Sentence() }

func (p SkillLink) validate() error {
	if p.Kind != WorkActivities && p.Kind != WorkContext {
		return fmt.Errorf("skill link kind %q: %w", p.Kind, domain.ErrMalformedRow)
	}
	return required(p.Kind, "soc_code", p.SOCCode, "occupation_title", p.OccupationTitle,
		"skill_id", p.SkillID, "skill_name", p.SkillName, "element_name", p.Element)
}

// Program is an academic study program from the jurusan feed.
type Program struct {
	Code    string
	Name    string
	Faculty string
	Level   string
}

func (p Program) Collection() Collection { return Jurusan }

func (p Program) Key() string {
	if p.Code != "" {
		return p.Code
	}
	return p.Name + "|" + p.Level
}

func (p Program) Fields() map[string]any {
	return map[string]any{
		"nama_jurusan": p.Name,
		"fakultas":     p.Faculty,
		"jenjang":      p.Level,
		"kode_prodi":   p.Code,
		"source":       SourceJurusanAPI,
	}
}

func (p Program) Context() string {
	return fmt.Sprintf("Jurusan Relevan: %s (%s) di fakultas %s", p.Name, p.Level, p.Faculty)
}

func (p Program) validate() error {
	return required(Jurusan, "nama_jurusan", p.Name)
}

// fieldMap reads loosely typed values coming back from a vector store.
type fieldMap map[string]any

func (m fieldMap) str(k string) string {
	switch v := m[k].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func (m fieldMap) num(k string) float64 {
	switch v := m[k].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}

func (m fieldMap) integer(k string) int {
	switch v := m[k].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

func (m fieldMap) flag(k string) bool {
	switch v := m[k].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

// DecodePayload rebuilds the typed payload for a stored point and
// validates it.
func DecodePayload(c Collection, fields map[string]any) (Payload, error) {
	m := fieldMap(fields)
	var p Payload
	switch c {
	case Occupations:
		p = Occupation{SOCCode: m.str("soc_code"), Title: m.str("title"), Description: m.str("description")}
	case Tasks:
		p = Task{SOCCode: m.str("soc_code"), OccupationTitle: m.str("occupation_title"),
			TaskID: m.str("task_id"), Description: m.str("task_description")}
	case Technologies:
		p = Technology{SOCCode: m.str("soc_code"), OccupationTitle: m.str("occupation_title"),
			Name: m.str("technology_name"), Category: m.str("category"), Hot: m.flag("hot_technology")}
	case Skills, Knowledge:
		p = Attribute{Kind: c, SOCCode: m.str("soc_code"), OccupationTitle: m.str("occupation_title"),
			ElementID: m.str("element_id"), Name: m.str("attribute_name"), Scale: m.str("scale"), Value: m.num("value")}
	case Relations:
		p = Relation{SOCCode: m.str("source_soc_code"), Title: m.str("source_title"),
			RelatedSOC: m.str("related_soc_code"), RelatedTitle: m.str("related_title"),
			Tier: m.str("relation_tier"), Index: m.integer("related_index")}
	case JobZones:
		p = JobZone{SOCCode: m.str("soc_code"), OccupationTitle: m.str("occupation_title"), Zone: m.integer("job_zone")}
	case WorkActivities, WorkContext:
		p = SkillLink{Kind: c, SOCCode: m.str("soc_code"), OccupationTitle: m.str("occupation_title"),
			SkillID: m.str("skill_id"), SkillName: m.str("skill_name"), Element: m.str("element_name")}
	case Jurusan:
		p = Program{Code: m.str("kode_prodi"), Name: m.str("nama_jurusan"), Faculty: m.str("fakultas"), Level: m.str("jenjang")}
	default:
		return nil, fmt.Errorf("facts: decode %q: %w", c, domain.ErrUnknownSourceType)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("facts: decode: %w", err)
	}
	return p, nil
}

// RenderContext renders a stored payload as a context line.
func RenderContext(c Collection, fields map[string]any) (string, error) {
	p, err := DecodePayload(c, fields)
	if err != nil {
		return "", err
	}
	return p.Context(), nil
}
