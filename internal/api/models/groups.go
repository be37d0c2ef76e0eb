package models

// MaxGroupNameLength bounds the human-readable room title.
const MaxGroupNameLength = 100

// GroupCreateRequest creates a members-only MUC room.
type GroupCreateRequest struct {
	Name       string   `json:"name"`
	MemberJIDs []string `json:"member_jids"`
}

// Validate checks the group creation input.
func (r *GroupCreateRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Name == "" {
		errs = append(errs, FieldError{Field: "name", Message: "is required"})
	} else if len(r.Name) > MaxGroupNameLength {
		errs = append(errs, FieldError{Field: "name", Message: "must be at most 100 characters"})
	}
	return errs
}

// Group describes a MUC room the caller belongs to.
type Group struct {
	GroupID string `json:"group_id"`
	JID     string `json:"jid"`
	Name    string `json:"name"`
}

// GroupListResponse lists the caller's rooms.
type GroupListResponse struct {
	Groups []Group `json:"groups"`
}

// GroupMember is one room affiliation entry.
type GroupMember struct {
	JID         string      `json:"jid"`
	Affiliation Affiliation `json:"affiliation"`
}

// GroupMembersResponse lists a room's affiliations.
type GroupMembersResponse struct {
	Members []GroupMember `json:"members"`
}

// GroupAddMemberRequest grants the member affiliation to a JID.
type GroupAddMemberRequest struct {
	JID string `json:"jid"`
}

// Validate checks the add-member input.
func (r *GroupAddMemberRequest) Validate() []FieldError {
	if r.JID == "" {
		return []FieldError{{Field: "jid", Message: "is required"}}
	}
	return nil
}
