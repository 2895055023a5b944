package memory

import "fmt"

func errStoryNotFound(id string) error {
	return fmt.Errorf("story %s not found", id)
}

func errDuplicateStory(id string) error {
	return fmt.Errorf("story %s already exists", id)
}

func errUnknownAuthor(id string) error {
	return fmt.Errorf("no profile for author %s", id)
}
