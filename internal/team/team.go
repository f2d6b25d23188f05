// Package team resolves the people a board can assign tasks to.
package team

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nissyi-gh/flowboard/internal/model"
)

// CurrentUserProvider returns the user of the active session.
type CurrentUserProvider interface {
	CurrentUser() (model.User, bool)
}

// StaticUser is a CurrentUserProvider for a fixed user.
type StaticUser model.User

func (u StaticUser) CurrentUser() (model.User, bool) {
	return model.User(u), u.ID != ""
}

// Directory lists every user of the organization.
type Directory interface {
	GetAllUsers(ctx context.Context) ([]model.User, error)
}

// MemberStore persists a project's team.
type MemberStore interface {
	UpdateProjectTeamMembers(ctx context.Context, projectID string, memberIDs []string) error
}

type Resolver struct {
	dir     Directory
	current CurrentUserProvider
	adminID string
	logger  zerolog.Logger
}

// NewResolver returns a resolver. adminID is the fixed id of the platform
// administrator, who may be missing from the directory.
func NewResolver(dir Directory, current CurrentUserProvider, adminID string, logger zerolog.Logger) *Resolver {
	return &Resolver{dir: dir, current: current, adminID: adminID, logger: logger}
}

// Resolve returns the assignable users for a project team sorted by name.
// An empty team means everyone in the directory. When the directory cannot
// be fetched, fallback is used instead.
func (r *Resolver) Resolve(ctx context.Context, teamMembers []string, fallback []model.User) []model.User {
	users, err := r.dir.GetAllUsers(ctx)
	if err != nil {
		r.logger.Error().
			Err(err).
			Int("fallback", len(fallback)).
			Msg("failed to fetch user directory")
		users = fallback
	}

	var out []model.User
	if len(teamMembers) == 0 {
		out = append(out, users...)
	} else {
		members := make(map[string]bool, len(teamMembers))
		for _, id := range teamMembers {
			members[id] = true
		}
		for _, u := range users {
			if members[u.ID] {
				out = append(out, u)
			}
		}
	}

	if admin, ok := r.adminUser(users); ok && !contains(out, admin.ID) {
		out = append(out, admin)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// adminUser returns the administrator when it is the session user. The
// directory record is preferred; a pseudo-user is synthesized only when the
// directory lacks it.
func (r *Resolver) adminUser(users []model.User) (model.User, bool) {
	if r.current == nil || r.adminID == "" {
		return model.User{}, false
	}
	cur, ok := r.current.CurrentUser()
	if !ok || cur.ID != r.adminID {
		return model.User{}, false
	}
	for _, u := range users {
		if u.ID == r.adminID {
			return u, true
		}
	}
	name := cur.Name
	if name == "" {
		name = "Administrator"
	}
	return model.User{ID: r.adminID, Name: name, Role: "admin"}, true
}

func contains(users []model.User, id string) bool {
	for _, u := range users {
		if u.ID == id {
			return true
		}
	}
	return false
}

// Toggle adds userID to members or removes it, persists the result and
// returns it.
func Toggle(ctx context.Context, store MemberStore, projectID string, members []string, userID string) ([]string, error) {
	next := make([]string, 0, len(members)+1)
	found := false
	for _, id := range members {
		if id == userID {
			found = true
			continue
		}
		next = append(next, id)
	}
	if !found {
		next = append(next, userID)
	}

	if err := store.UpdateProjectTeamMembers(ctx, projectID, next); err != nil {
		return members, fmt.Errorf("update team of project %s: %w", projectID, err)
	}
	return next, nil
}
