package gateway

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// HealthUnknown is shown for a service whose health has not been fetched or
// whose health body carries no status.
const HealthUnknown = "unknown"

// Upstream is what the dashboard needs from a resource service.
type Upstream interface {
	Health(ctx context.Context) (Health, error)
	List(ctx context.Context) ([]json.RawMessage, error)
	Create(ctx context.Context, body any) (json.RawMessage, error)
}

// HealthView mirrors the status string reported by each service.
type HealthView struct {
	Users    string `json:"users"`
	Projects string `json:"projects"`
}

// Totals counts the records currently shown.
type Totals struct {
	Users    int `json:"users"`
	Projects int `json:"projects"`
}

// UserForm holds the last submitted user.
type UserForm struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ProjectForm holds the last submitted project.
type ProjectForm struct {
	Name       string `json:"name"`
	OwnerEmail string `json:"ownerEmail"`
}

// View is one immutable dashboard snapshot.
type View struct {
	Health      HealthView        `json:"health"`
	Users       []json.RawMessage `json:"users"`
	Projects    []json.RawMessage `json:"projects"`
	Totals      Totals            `json:"totals"`
	UserForm    UserForm          `json:"userForm"`
	ProjectForm ProjectForm       `json:"projectForm"`
	Error       string            `json:"error"`
	RefreshedAt *time.Time        `json:"refreshedAt"`
}

// Dashboard composes the users and projects services into one view. It keeps
// no stored state beyond the last fetched snapshot.
type Dashboard struct {
	users    Upstream
	projects Upstream
	now      func() time.Time
	view     atomic.Pointer[View]
}

// NewDashboard returns a dashboard with an empty view.
func NewDashboard(users, projects Upstream) *Dashboard {
	d := &Dashboard{users: users, projects: projects, now: time.Now}
	d.view.Store(&View{
		Health:   HealthView{Users: HealthUnknown, Projects: HealthUnknown},
		Users:    []json.RawMessage{},
		Projects: []json.RawMessage{},
	})
	return d
}

// Snapshot returns the current view.
func (d *Dashboard) Snapshot() View {
	return *d.view.Load()
}

// RefreshAll fetches both healths and both lists concurrently and waits for
// all four. Any failure keeps the previous data and records only the first
// error. On success the four parts are replaced in a single swap.
func (d *Dashboard) RefreshAll(ctx context.Context) (View, error) {
	d.update(func(v *View) { v.Error = "" })

	var (
		g              errgroup.Group
		usersHealth    Health
		projectsHealth Health
		users          []json.RawMessage
		projects       []json.RawMessage
	)
	g.Go(func() (err error) {
		usersHealth, err = d.users.Health(ctx)
		return err
	})
	g.Go(func() (err error) {
		projectsHealth, err = d.projects.Health(ctx)
		return err
	})
	g.Go(func() (err error) {
		users, err = d.users.List(ctx)
		return err
	})
	g.Go(func() (err error) {
		projects, err = d.projects.List(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return d.fail(err), err
	}

	refreshed := d.now().UTC()
	return d.update(func(v *View) {
		v.Health = HealthView{
			Users:    statusOrUnknown(usersHealth),
			Projects: statusOrUnknown(projectsHealth),
		}
		v.Users = nonNil(users)
		v.Projects = nonNil(projects)
		v.RefreshedAt = &refreshed
	}), nil
}

// CreateUser submits form to the users service. On success the form is
// cleared and only the users list is reloaded. On failure the form is kept.
func (d *Dashboard) CreateUser(ctx context.Context, form UserForm) (View, error) {
	d.update(func(v *View) {
		v.UserForm = form
		v.Error = ""
	})
	if _, err := d.users.Create(ctx, form); err != nil {
		return d.fail(err), err
	}
	d.update(func(v *View) { v.UserForm = UserForm{} })

	users, err := d.users.List(ctx)
	if err != nil {
		return d.fail(err), err
	}
	return d.update(func(v *View) { v.Users = nonNil(users) }), nil
}

// CreateProject submits form to the projects service, mirroring CreateUser.
func (d *Dashboard) CreateProject(ctx context.Context, form ProjectForm) (View, error) {
	d.update(func(v *View) {
		v.ProjectForm = form
		v.Error = ""
	})
	if _, err := d.projects.Create(ctx, form); err != nil {
		return d.fail(err), err
	}
	d.update(func(v *View) { v.ProjectForm = ProjectForm{} })

	projects, err := d.projects.List(ctx)
	if err != nil {
		return d.fail(err), err
	}
	return d.update(func(v *View) { v.Projects = nonNil(projects) }), nil
}

func (d *Dashboard) fail(err error) View {
	return d.update(func(v *View) { v.Error = err.Error() })
}

// update applies fn to a copy of the current view and publishes it. Slices
// in a published view are never mutated, so a shallow copy is enough.
func (d *Dashboard) update(fn func(*View)) View {
	for {
		current := d.view.Load()
		next := *current
		fn(&next)
		next.Totals = Totals{Users: len(next.Users), Projects: len(next.Projects)}
		if d.view.CompareAndSwap(current, &next) {
			return next
		}
	}
}

func statusOrUnknown(h Health) string {
	if h.Status == "" {
		return HealthUnknown
	}
	return h.Status
}

func nonNil(records []json.RawMessage) []json.RawMessage {
	if records == nil {
		return []json.RawMessage{}
	}
	return records
}
