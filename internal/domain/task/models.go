package task

import "time"

type Kind string

const (
	KindPersonal Kind = "personal"
	KindTeam     Kind = "team"
)

type Status string

const (
	StatusCreated       Status = "created"
	StatusStarted       Status = "started"
	StatusReplied       Status = "replied"
	StatusApproved      Status = "approved"
	StatusNeedsRevision Status = "needs_revision"
)

// Reply statuses as shown in task listings.
const (
	ReplyNotStarted     = "Not Started"
	ReplyNeedReview     = "Need Review"
	ReplyApproved       = "Approved"
	ReplyRevisionNeeded = "Revision Needed"
)

type Actor struct {
	UserID         string
	OrganizationID string
	Admin          bool
}

type Task struct {
	ID              string     `json:"id"`
	OrganizationID  string     `json:"organizationId"`
	TeamID          string     `json:"teamId"`
	TeamName        string     `json:"teamName,omitempty"`
	ManagerID       string     `json:"managerId,omitempty"`
	AssigneeID      string     `json:"assigneeId"`
	AssigneeName    string     `json:"assigneeName,omitempty"`
	CreatedBy       string     `json:"createdBy"`
	Kind            Kind       `json:"kind"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Status          Status     `json:"status"`
	StartDate       time.Time  `json:"startDate"`
	DueDate         time.Time  `json:"dueDate"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	ManagerComment  string     `json:"managerComment"`
	RevisionComment string     `json:"revisionComment"`
	LastReplyStatus string     `json:"lastReplyStatus"`
	HasFiles        bool       `json:"hasFiles"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type Reply struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"taskId"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName,omitempty"`
	Message    string    `json:"message"`
	Status     string    `json:"status"`
	Files      []File    `json:"files,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type File struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"taskId"`
	ReplyID     string    `json:"replyId,omitempty"`
	FileName    string    `json:"fileName"`
	StorageKey  string    `json:"-"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	Encrypted   bool      `json:"-"`
	UploadedBy  string    `json:"uploadedBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Detail is a task with its reply thread and attachments.
type Detail struct {
	Task
	Replies []Reply `json:"replies"`
	Files   []File  `json:"files"`
}

type TeamRef struct {
	ID             string
	OrganizationID string
	Name           string
	ManagerID      string
}

type Input struct {
	TeamID      string
	AssigneeID  string
	Kind        Kind
	Title       string
	Description string
	StartDate   time.Time
	DueDate     time.Time
}

type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

type Filter struct {
	OrganizationID string
	TeamID         string
	AssigneeID     string
	ManagerID      string
	Status         Status
	Kind           Kind
	ActiveAt       *time.Time
	Limit          int
	Offset         int
}

// StatusUpdate carries the columns a transition writes; nil fields are left
// untouched.
// StatusUpdate moves a task out of From. The update applies only while the
// task is still in From.
type StatusUpdate struct {
	From            Status
	Status          Status
	StartedAt       *time.Time
	ManagerComment  *string
	RevisionComment *string
}
