package task

import (
	"path"
	"strings"

	"github.com/google/uuid"
)

type Action string

const (
	ActionStart    Action = "start"
	ActionReply    Action = "reply"
	ActionApprove  Action = "approve"
	ActionRevision Action = "revision"
)

var transitions = map[Action]struct {
	from []Status
	to   Status
}{
	ActionStart:    {from: []Status{StatusCreated}, to: StatusStarted},
	ActionReply:    {from: []Status{StatusStarted, StatusReplied, StatusNeedsRevision}, to: StatusReplied},
	ActionApprove:  {from: []Status{StatusReplied}, to: StatusApproved},
	ActionRevision: {from: []Status{StatusReplied}, to: StatusNeedsRevision},
}

// Next returns the status a task moves to when action is applied in status
// from, or ErrInvalidTransition.
func Next(from Status, action Action) (Status, error) {
	rule, ok := transitions[action]
	if !ok {
		return "", ErrInvalidTransition
	}
	for _, allowed := range rule.from {
		if allowed == from {
			return rule.to, nil
		}
	}
	return "", ErrInvalidTransition
}

// replyStatusFor is the status stamped on the latest reply by a review.
func replyStatusFor(action Action) string {
	switch action {
	case ActionApprove:
		return ReplyApproved
	case ActionRevision:
		return ReplyRevisionNeeded
	default:
		return ReplyNeedReview
	}
}

// LastReplyStatus reports the status of the newest reply; replies are ordered
// oldest first.
func LastReplyStatus(replies []Reply) string {
	if len(replies) == 0 {
		return ReplyNotStarted
	}
	return replies[len(replies)-1].Status
}

// StorageKey builds the blob key for an attachment.
func StorageKey(taskID string, id uuid.UUID, fileName string) string {
	return "tasks/" + taskID + "/" + id.String() + "-" + SanitizeFileName(fileName)
}

// SanitizeFileName keeps the base name and replaces anything outside
// [A-Za-z0-9._-] with an underscore.
func SanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return "file"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "file"
	}
	return out
}
