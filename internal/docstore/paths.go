package docstore

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

func NewID() string {
	return uuid.New().String()
}

func UserPath(userID string) string {
	return "users/" + userID
}

func UsersCollection() string {
	return "users"
}

func ProjectsPath(userID string) string {
	return UserPath(userID) + "/projects"
}

func ProjectPath(userID, projectID string) string {
	return ProjectsPath(userID) + "/" + projectID
}

// MessagesPath returns the general thread of a user when projectID is empty.
func MessagesPath(userID, projectID string) string {
	if projectID == "" {
		return UserPath(userID) + "/messages"
	}
	return ProjectPath(userID, projectID) + "/messages"
}

func DimensionsPath(userID, projectID string) string {
	return ProjectPath(userID, projectID) + "/dimensions"
}

func Join(collection, id string) string {
	return collection + "/" + id
}

// Split separates a document path into its collection path and id.
func Split(path string) (collection, id string, err error) {
	path = strings.Trim(path, "/")
	segments := strings.Split(path, "/")
	if len(segments)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q has an odd number of segments", ErrInvalidPath, path)
	}
	for _, s := range segments {
		if s == "" {
			return "", "", fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, path)
		}
	}
	i := strings.LastIndex(path, "/")
	return path[:i], path[i+1:], nil
}

// ValidCollection reports whether path names a collection (odd segment count).
func ValidCollection(path string) bool {
	path = strings.Trim(path, "/")
	if path == "" {
		return false
	}
	segments := strings.Split(path, "/")
	for _, s := range segments {
		if s == "" {
			return false
		}
	}
	return len(segments)%2 == 1
}

// Under reports whether docPath lives anywhere below prefix.
func Under(docPath, prefix string) bool {
	return strings.HasPrefix(docPath, strings.TrimSuffix(prefix, "/")+"/")
}
