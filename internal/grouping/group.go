// Package grouping derives the per-author story tray from a flat story list.
package grouping

import "storyapi/internal/model"

// Group partitions stories by author in first-seen order, marks each story as
// viewed when its id is in viewed, and moves the viewer's own group to the front.
// Stories keep their input order inside a group. The input slice is not modified.
func Group(stories []model.Story, viewed map[string]struct{}, viewerID string) []model.StoryGroup {
	groups := make([]model.StoryGroup, 0)
	index := make(map[string]int)

	for _, s := range stories {
		_, s.HasViewed = viewed[s.ID]

		i, ok := index[s.AuthorID]
		if !ok {
			i = len(groups)
			index[s.AuthorID] = i
			groups = append(groups, model.StoryGroup{
				AuthorID:    s.AuthorID,
				DisplayName: s.DisplayName,
				AvatarURL:   s.AvatarURL,
			})
		}
		g := &groups[i]
		g.Stories = append(g.Stories, s)
		g.HasUnviewed = g.HasUnviewed || !s.HasViewed
	}

	if own, ok := index[viewerID]; ok && own > 0 {
		mine := groups[own]
		copy(groups[1:own+1], groups[:own])
		groups[0] = mine
	}
	return groups
}
