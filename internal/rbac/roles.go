package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleAgent      = "agent"      // owns calls, read-only on own results
	RoleSupervisor = "supervisor" // reviews audits, triggers retries
	RoleOperator   = "operator"   // runs batches, operates the pipeline
	RoleAdmin      = "admin"
)

func IsAdmin(role string) bool { return role == RoleAdmin }
