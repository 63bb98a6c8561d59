package model

// Permission represents a string code for a specific system action.
type Permission string

const (
	// PermissionQuestionsWrite allows authoring questions.
	PermissionQuestionsWrite Permission = "questions:write"

	// PermissionQuestionsReview allows assigning, unassigning and reading the review queue.
	PermissionQuestionsReview Permission = "questions:review"

	// PermissionQuestionsOverride allows forcing a question into any review state.
	PermissionQuestionsOverride Permission = "questions:override"

	// PermissionQuizzesRead allows viewing quiz definitions.
	PermissionQuizzesRead Permission = "quizzes:read"

	// PermissionQuizzesWrite allows creating quizzes.
	PermissionQuizzesWrite Permission = "quizzes:write"

	// PermissionQuizzesTake allows starting and answering attempts.
	PermissionQuizzesTake Permission = "quizzes:take"

	// PermissionExplorerRead allows the tag-subject relationship reports.
	PermissionExplorerRead Permission = "explorer:read"
)

// RolePermissions is the fixed role to permission mapping embedded in tokens.
var RolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermissionQuestionsWrite,
		PermissionQuestionsReview,
		PermissionQuestionsOverride,
		PermissionQuizzesRead,
		PermissionQuizzesWrite,
		PermissionExplorerRead,
	},
	RoleTeacher: {
		PermissionQuestionsWrite,
		PermissionQuestionsReview,
		PermissionQuizzesRead,
		PermissionQuizzesWrite,
	},
	RoleStudent: {
		PermissionQuizzesRead,
		PermissionQuizzesTake,
	},
}

// PermissionsFor returns the permission codes granted to a role.
func PermissionsFor(role Role) []string {
	perms := RolePermissions[role]
	codes := make([]string, len(perms))
	for i, p := range perms {
		codes[i] = string(p)
	}
	return codes
}
