package onet

// File names inside an O*NET database release.
const (
	FileOccupations         = "Occupation Data.txt"
	FileTasks               = "Task Statements.txt"
	FileTechnologies        = "Technology Skills.txt"
	FileSkills              = "Skills.txt"
	FileKnowledge           = "Knowledge.txt"
	FileRelated             = "Related Occupations.txt"
	FileJobZones            = "Job Zones.txt"
	FileSkillsToActivities  = "Skills to Work Activities.txt"
	FileSkillsToWorkContext = "Skills to Work Context.txt"
)

// Column headers used across files.
const (
	ColSOCCode         = "O*NET-SOC Code"
	ColTitle           = "Title"
	ColDescription     = "Description"
	ColTaskID          = "Task ID"
	ColTask            = "Task"
	ColExample         = "Example"
	ColCommodityTitle  = "Commodity Title"
	ColHotTechnology   = "Hot Technology"
	ColElementID       = "Element ID"
	ColElementName     = "Element Name"
	ColScaleID         = "Scale ID"
	ColDataValue       = "Data Value"
	ColRelatedSOCCode  = "Related O*NET-SOC Code"
	ColRelatednessTier = "Relatedness Tier"
	ColRelatedIndex    = "Related Index"
	ColIndex           = "Index"
	ColJobZone         = "Job Zone"
	ColSkillsElementID = "Skills Element ID"
	ColSkillsElement   = "Skills Element Name"
	ColActivityElement = "Work Activities Element Name"
	ColContextElement  = "Work Context Element Name"
)

// Scale identifiers kept for attribute tables.
const (
	ScaleImportance = "IM"
	ScaleLevel      = "LV"
)

// ScaleName maps a kept scale id to its readable name.
func ScaleName(id string) (string, bool) {
	switch id {
	case ScaleImportance:
		return "Importance", true
	case ScaleLevel:
		return "Level", true
	default:
		return "", false
	}
}
