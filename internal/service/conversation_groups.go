package service

import (
	"sort"

	"github.com/google/uuid"

	"github.com/noah-isme/runar/internal/models"
)

// CreateGroup inserts a new group with a generated id. Members are deduplicated in order.
func (s *ConversationStore) CreateGroup(name string, members []string, createdBy string) models.GroupChat {
	group := &models.GroupChat{
		ID:        uuid.NewString(),
		Name:      name,
		Members:   dedupeIDs(members),
		History:   []models.Message{},
		CreatedBy: createdBy,
		CreatedAt: s.nowMillis(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.groupChats[group.ID] = group
	return cloneGroup(group)
}

// PutGroup inserts a group announced by another session. Existing groups are left untouched.
func (s *ConversationStore) PutGroup(group models.GroupChat) bool {
	if group.ID == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.groupChats[group.ID]; exists {
		return false
	}
	stored := cloneGroup(&group)
	stored.Members = dedupeIDs(stored.Members)
	stored.History = sanitizeHistory(stored.History)
	s.groupChats[group.ID] = &stored
	return true
}

// Group returns a copy of a group.
func (s *ConversationStore) Group(groupID string) (models.GroupChat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	group, ok := s.groupChats[groupID]
	if !ok {
		return models.GroupChat{}, false
	}
	return cloneGroup(group), true
}

// Groups returns every known group ordered by name.
func (s *ConversationStore) Groups() []models.GroupChat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.GroupChat, 0, len(s.groupChats))
	for _, group := range s.groupChats {
		out = append(out, cloneGroup(group))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// RenameGroup renames a group.
func (s *ConversationStore) RenameGroup(groupID, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groupChats[groupID]
	if !ok {
		return false
	}
	group.Name = name
	return true
}

// AddGroupMember appends userID to the group's members unless already present.
func (s *ConversationStore) AddGroupMember(groupID, userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groupChats[groupID]
	if !ok || group.HasMember(userID) {
		return false
	}
	group.Members = append(group.Members, userID)
	return true
}

// RemoveGroupMember drops userID from the group's members, preserving the order of the rest.
func (s *ConversationStore) RemoveGroupMember(groupID, userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groupChats[groupID]
	if !ok || !group.HasMember(userID) {
		return false
	}
	members := make([]string, 0, len(group.Members)-1)
	for _, id := range group.Members {
		if id != userID {
			members = append(members, id)
		}
	}
	group.Members = members
	return true
}

// DeleteGroup removes a group together with its ancillary state.
func (s *ConversationStore) DeleteGroup(groupID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groupChats[groupID]; !ok {
		return false
	}
	delete(s.groupChats, groupID)
	delete(s.unread, groupID)
	delete(s.lastRead, groupID)
	delete(s.lastActivity, groupID)
	delete(s.typing, groupID)
	delete(s.pinned, groupID)
	s.favorites, _ = removeID(s.favorites, groupID)
	s.muted, _ = removeID(s.muted, groupID)
	return true
}

func removeID(ids []string, id string) ([]string, bool) {
	if !containsID(ids, id) {
		return ids, false
	}
	out, _ := toggleID(ids, id)
	return out, true
}

func cloneGroup(group *models.GroupChat) models.GroupChat {
	out := *group
	out.Members = append([]string{}, group.Members...)
	out.History = cloneHistory(group.History)
	return out
}
