package rag

import "github.com/upi-karir/karir/engine/facts"

// Language selects which question embedding a search uses.
type Language int

const (
	// Original is the question as the user asked it.
	Original Language = iota
	// English is the translated question.
	English
)

func (l Language) String() string {
	if l == English {
		return "english"
	}
	return "original"
}

// Search is one entry of a retrieval plan.
type Search struct {
	Collection facts.Collection
	TopK       int
	Language   Language
}

// DefaultPlan searches program names with the untranslated question and
// everything from O*NET with the English one. Context lines are merged in
// this order.
func DefaultPlan() []Search {
	return []Search{
		{facts.Jurusan, 5, Original},
		{facts.Occupations, 3, English},
		{facts.Tasks, 3, English},
		{facts.Technologies, 3, English},
		{facts.Skills, 3, English},
		{facts.Knowledge, 3, English},
		{facts.Relations, 3, English},
		{facts.JobZones, 2, English},
		{facts.WorkActivities, 2, English},
		{facts.WorkContext, 2, English},
	}
}
