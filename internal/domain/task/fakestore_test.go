package task

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

type fakeState struct {
	seq     int
	teams   map[string]TeamRef
	members map[string]bool
	tasks   map[string]Task
	replies []Reply
	files   []File
}

func (s fakeState) clone() fakeState {
	out := fakeState{seq: s.seq, teams: map[string]TeamRef{}, members: map[string]bool{}, tasks: map[string]Task{}}
	for k, v := range s.teams {
		out.teams[k] = v
	}
	for k, v := range s.members {
		out.members[k] = v
	}
	for k, v := range s.tasks {
		out.tasks[k] = v
	}
	out.replies = append([]Reply(nil), s.replies...)
	out.files = append([]File(nil), s.files...)
	return out
}

type fakeStore struct {
	state          fakeState
	failInsertFile error
	clock          time.Time
	// afterGet runs once GetTask has read a task, before it is returned.
	afterGet func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		state: fakeState{teams: map[string]TeamRef{}, members: map[string]bool{}, tasks: map[string]Task{}},
		clock: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (f *fakeStore) nextID(prefix string) string {
	f.state.seq++
	return fmt.Sprintf("%s-%d", prefix, f.state.seq)
}

func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeStore) addTeam(orgID, id, managerID string) {
	f.state.teams[id] = TeamRef{ID: id, OrganizationID: orgID, Name: id, ManagerID: managerID}
}

func (f *fakeStore) addMember(teamID, userID string) {
	f.state.members[teamID+"/"+userID] = true
}

func (f *fakeStore) TeamInOrganization(ctx context.Context, orgID, teamID string) (TeamRef, error) {
	team, ok := f.state.teams[teamID]
	if !ok || team.OrganizationID != orgID {
		return TeamRef{}, ErrTeamNotFound
	}
	return team, nil
}

func (f *fakeStore) IsActiveMember(ctx context.Context, teamID, userID string) (bool, error) {
	return f.state.members[teamID+"/"+userID], nil
}

func (f *fakeStore) decorate(t Task) Task {
	t.ManagerID = f.state.teams[t.TeamID].ManagerID
	t.LastReplyStatus = ReplyNotStarted
	for _, r := range f.state.replies {
		if r.TaskID == t.ID {
			t.LastReplyStatus = r.Status
		}
	}
	t.HasFiles = false
	for _, file := range f.state.files {
		if file.TaskID == t.ID {
			t.HasFiles = true
		}
	}
	return t
}

func (f *fakeStore) CreateTask(ctx context.Context, t Task) (Task, error) {
	t.ID = f.nextID("task")
	t.CreatedAt = f.tick()
	t.UpdatedAt = t.CreatedAt
	f.state.tasks[t.ID] = t
	return f.decorate(t), nil
}

func (f *fakeStore) GetTask(ctx context.Context, orgID, taskID string) (Task, error) {
	t, ok := f.state.tasks[taskID]
	if !ok || t.OrganizationID != orgID {
		return Task{}, ErrTaskNotFound
	}
	if f.afterGet != nil {
		f.afterGet()
	}
	return f.decorate(t), nil
}

func (f *fakeStore) UpdateTask(ctx context.Context, t Task) (Task, error) {
	if _, ok := f.state.tasks[t.ID]; !ok {
		return Task{}, ErrTaskNotFound
	}
	t.UpdatedAt = f.tick()
	f.state.tasks[t.ID] = t
	return f.decorate(t), nil
}

func (f *fakeStore) DeleteTask(ctx context.Context, orgID, taskID string) error {
	if _, ok := f.state.tasks[taskID]; !ok {
		return ErrTaskNotFound
	}
	delete(f.state.tasks, taskID)
	return nil
}

func (f *fakeStore) ListTasks(ctx context.Context, filter Filter) ([]Task, error) {
	var out []Task
	for _, t := range f.state.tasks {
		t = f.decorate(t)
		switch {
		case t.OrganizationID != filter.OrganizationID:
		case filter.TeamID != "" && t.TeamID != filter.TeamID:
		case filter.AssigneeID != "" && t.AssigneeID != filter.AssigneeID:
		case filter.ManagerID != "" && t.ManagerID != filter.ManagerID:
		case filter.Status != "" && t.Status != filter.Status:
		case filter.Kind != "" && t.Kind != filter.Kind:
		case filter.ActiveAt != nil && (t.StartDate.After(*filter.ActiveAt) || !t.DueDate.After(*filter.ActiveAt) || t.Status == StatusApproved):
		default:
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) SetStatus(ctx context.Context, taskID string, update StatusUpdate) (Task, error) {
	t, ok := f.state.tasks[taskID]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	if t.Status != update.From {
		return Task{}, ErrInvalidTransition
	}
	t.Status = update.Status
	if update.StartedAt != nil {
		t.StartedAt = update.StartedAt
	}
	if update.ManagerComment != nil {
		t.ManagerComment = *update.ManagerComment
	}
	if update.RevisionComment != nil {
		t.RevisionComment = *update.RevisionComment
	}
	t.UpdatedAt = f.tick()
	f.state.tasks[taskID] = t
	return f.decorate(t), nil
}

func (f *fakeStore) InsertReply(ctx context.Context, reply Reply) (Reply, error) {
	reply.ID = f.nextID("reply")
	reply.CreatedAt = f.tick()
	f.state.replies = append(f.state.replies, reply)
	return reply, nil
}

func (f *fakeStore) SetLatestReplyStatus(ctx context.Context, taskID, status string) error {
	for i := len(f.state.replies) - 1; i >= 0; i-- {
		if f.state.replies[i].TaskID == taskID {
			f.state.replies[i].Status = status
			return nil
		}
	}
	return nil
}

func (f *fakeStore) ListReplies(ctx context.Context, taskID string) ([]Reply, error) {
	var out []Reply
	for _, r := range f.state.replies {
		if r.TaskID == taskID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertFile(ctx context.Context, file File) (File, error) {
	if f.failInsertFile != nil {
		return File{}, f.failInsertFile
	}
	file.ID = f.nextID("file")
	file.CreatedAt = f.tick()
	f.state.files = append(f.state.files, file)
	return file, nil
}

func (f *fakeStore) GetFile(ctx context.Context, taskID, fileID string) (File, error) {
	for _, file := range f.state.files {
		if file.TaskID == taskID && file.ID == fileID {
			return file, nil
		}
	}
	return File{}, ErrFileNotFound
}

func (f *fakeStore) ListFiles(ctx context.Context, taskID string) ([]File, error) {
	var out []File
	for _, file := range f.state.files {
		if file.TaskID == taskID {
			out = append(out, file)
		}
	}
	return out, nil
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(StoreAPI) error) error {
	tx := &fakeStore{state: f.state.clone(), failInsertFile: f.failInsertFile, clock: f.clock}
	if err := fn(tx); err != nil {
		return err
	}
	f.state = tx.state
	f.clock = tx.clock
	return nil
}

var errBoom = errors.New("boom")
