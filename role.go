package relay

// Role identifies the participant a message belongs to.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultRole is assigned to server payloads that do not name a role.
const DefaultRole = RoleAssistant

// OrDefault returns r, or DefaultRole when r is empty.
func (r Role) OrDefault() Role {
	if r == "" {
		return DefaultRole
	}
	return r
}
