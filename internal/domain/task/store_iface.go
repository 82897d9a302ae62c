package task

import "context"

type StoreAPI interface {
	TeamInOrganization(ctx context.Context, orgID, teamID string) (TeamRef, error)
	IsActiveMember(ctx context.Context, teamID, userID string) (bool, error)

	CreateTask(ctx context.Context, t Task) (Task, error)
	GetTask(ctx context.Context, orgID, taskID string) (Task, error)
	UpdateTask(ctx context.Context, t Task) (Task, error)
	DeleteTask(ctx context.Context, orgID, taskID string) error
	ListTasks(ctx context.Context, filter Filter) ([]Task, error)
	SetStatus(ctx context.Context, taskID string, update StatusUpdate) (Task, error)

	InsertReply(ctx context.Context, reply Reply) (Reply, error)
	SetLatestReplyStatus(ctx context.Context, taskID, status string) error
	ListReplies(ctx context.Context, taskID string) ([]Reply, error)

	InsertFile(ctx context.Context, file File) (File, error)
	GetFile(ctx context.Context, taskID, fileID string) (File, error)
	ListFiles(ctx context.Context, taskID string) ([]File, error)

	WithTx(ctx context.Context, fn func(StoreAPI) error) error
}
