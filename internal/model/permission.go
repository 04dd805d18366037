package model

// Permission represents a string code for a specific system action.
type Permission string

const (
	// PermissionExamsRead allows viewing exam results and rankings.
	PermissionExamsRead Permission = "exams:read"

	// PermissionResultsManage allows recomputing an exam's ranking.
	PermissionResultsManage Permission = "results:manage"

	// PermissionSubmissionsSweep allows triggering the auto-submission sweep by hand.
	PermissionSubmissionsSweep Permission = "submissions:sweep"
)
