package service

import "regexp"

var mentionPattern = regexp.MustCompile(`@(\w+)`)

// ParseMentions resolves @name tokens against the directory and returns the matching user ids once each.
func ParseMentions(content string, directory *Directory) []string {
	if directory == nil {
		return nil
	}

	var ids []string
	seen := make(map[string]struct{})
	for _, match := range mentionPattern.FindAllStringSubmatch(content, -1) {
		user, ok := directory.ByName(match[1])
		if !ok {
			continue
		}
		if _, dup := seen[user.ID]; dup {
			continue
		}
		seen[user.ID] = struct{}{}
		ids = append(ids, user.ID)
	}
	return ids
}
