package chat

import (
	"cmp"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// A Friend is the subset of a user profile needed to list and search friends.
type Friend struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// A FriendSection groups friends whose names share a leading letter.
type FriendSection struct {
	Title   string   `json:"title"`
	UserIDs []string `json:"user_ids"`
}

// otherTitle collects names that do not start with an ASCII letter.
const otherTitle = "#"

// SectionFriends sorts friends by name and splits them into alphabetical
// sections. The input slice is not modified.
func SectionFriends(friends []Friend) []FriendSection {
	sorted := slices.Clone(friends)
	slices.SortStableFunc(sorted, func(a, b Friend) int {
		return cmp.Or(
			cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)),
			cmp.Compare(a.Username, b.Username),
		)
	})

	sections := make([]FriendSection, 0)
	index := make(map[string]int)
	for _, f := range sorted {
		title := sectionLetter(f.Name)
		i, ok := index[title]
		if !ok {
			i = len(sections)
			index[title] = i
			sections = append(sections, FriendSection{Title: title})
		}
		sections[i].UserIDs = append(sections[i].UserIDs, f.UserID)
	}
	return sections
}

func sectionLetter(name string) string {
	if name == "" {
		return otherTitle
	}
	c := name[0]
	switch {
	case 'a' <= c && c <= 'z':
		return string(c - 'a' + 'A')
	case 'A' <= c && c <= 'Z':
		return string(c)
	}
	return otherTitle
}

// SearchFriends returns the IDs of friends whose name or username contains
// query, ignoring case. Results keep the order of friends.
func SearchFriends(friends []Friend, query string) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []string{}
	}
	matches := lo.Filter(friends, func(f Friend, _ int) bool {
		return strings.Contains(strings.ToLower(f.Name), q) ||
			strings.Contains(strings.ToLower(f.Username), q)
	})
	return lo.Map(matches, func(f Friend, _ int) string {
		return f.UserID
	})
}
