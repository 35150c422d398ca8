package repository

// Store bundles one backend's repositories with the transactor they join.
type Store struct {
	Tx          Transactor
	Users       UserRepository
	Projects    ProjectRepository
	Memberships MembershipRepository
	Audit       AuditRepository
}
