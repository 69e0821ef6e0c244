package domain

import "strings"

// Stage is a position in an event funnel. Stage lists are configurable per
// event; the constants below are the canonical vocabulary.
type Stage string

const (
	StageMember   Stage = "member"
	StageRSVPed   Stage = "rsvped"
	StagePaid     Stage = "paid"
	StageAttended Stage = "attended"

	// StageSoftCommit is the legacy name for StageRSVPed. Records written
	// under the older vocabulary still carry it.
	StageSoftCommit Stage = "soft_commit"
)

// stageAliases maps legacy stage names to their canonical equivalent.
var stageAliases = map[Stage]Stage{
	StageSoftCommit: StageRSVPed,
}

// DefaultStages is the stage list used when an event configures none.
// The raw list is ["member","soft_commit","paid"]; it is stored normalized.
var DefaultStages = NormalizeStages([]string{"member", "soft_commit", "paid"})

// NormalizeStage trims and lower-cases s and resolves legacy aliases.
func NormalizeStage(s string) Stage {
	st := Stage(strings.ToLower(strings.TrimSpace(s)))
	if canonical, ok := stageAliases[st]; ok {
		return canonical
	}
	return st
}

// StageVariants returns every stored spelling that normalizes to st: the
// canonical name first, then its legacy aliases.
func StageVariants(st Stage) []string {
	st = NormalizeStage(string(st))
	out := []string{string(st)}
	for alias, canonical := range stageAliases {
		if canonical == st {
			out = append(out, string(alias))
		}
	}
	return out
}

// NormalizeStages normalizes every entry and drops empty and repeated ones.
func NormalizeStages(stages []string) []Stage {
	out := make([]Stage, 0, len(stages))
	seen := make(map[Stage]struct{}, len(stages))
	for _, s := range stages {
		st := NormalizeStage(s)
		if st == "" {
			continue
		}
		if _, ok := seen[st]; ok {
			continue
		}
		seen[st] = struct{}{}
		out = append(out, st)
	}
	return out
}

// ContainsStage reports whether st is in stages. Both sides are compared in
// normalized form.
func ContainsStage(stages []Stage, st Stage) bool {
	st = NormalizeStage(string(st))
	for _, s := range stages {
		if NormalizeStage(string(s)) == st {
			return true
		}
	}
	return false
}

// StageStrings converts a stage list to plain strings.
func StageStrings(stages []Stage) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = string(s)
	}
	return out
}

// AudienceType partitions how a contact relates to an event.
type AudienceType string

const (
	AudienceOrgMember        AudienceType = "org_member"
	AudienceFriendSpouse     AudienceType = "friend_spouse"
	AudienceCommunityPartner AudienceType = "community_partner"
)

// DefaultAudienceTypes is the audience list used when an event configures none.
var DefaultAudienceTypes = []AudienceType{
	AudienceOrgMember,
	AudienceFriendSpouse,
	AudienceCommunityPartner,
}

// NormalizeAudienceType trims and lower-cases a.
func NormalizeAudienceType(a string) AudienceType {
	return AudienceType(strings.ToLower(strings.TrimSpace(a)))
}

// ContainsAudienceType reports whether a is in types.
func ContainsAudienceType(types []AudienceType, a AudienceType) bool {
	for _, t := range types {
		if t == a {
			return true
		}
	}
	return false
}

// Source records how a contact entered a pipeline.
type Source string

const (
	SourceCSV         Source = "csv"
	SourceAdminAdd    Source = "admin_add"
	SourceBulkImport  Source = "bulk_import"
	SourceTagFilter   Source = "tag_filter"
	SourceLandingForm Source = "landing_form"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceCSV, SourceAdminAdd, SourceBulkImport, SourceTagFilter, SourceLandingForm:
		return true
	}
	return false
}
