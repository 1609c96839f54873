//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"directory-chat/contract"
	"directory-chat/domain"
	"directory-chat/errors"
	"directory-chat/repositories"
	"directory-chat/runtime/workers"
)

type IChatService interface {
	CreateMessage(ctx context.Context, groupID int64, senderID, content string) (domain.Message, error)
	ListMessages(groupID int64, userID string, limit, offset int) ([]domain.Message, error)
	CountMessages(groupID int64, userID string) (int, error)
	MarkRead(messageID int64, userID string) error
	MarkGroupRead(groupID int64, userID string) error
	UnreadCount(groupID int64, userID string) (int, error)
	GlobalUnread(userID string) (int, error)
	JoinGroups(userID string, groupIDs []int64) ([]int64, error)
}

// Broadcaster is the live fan-out collaborator (runtime.Broadcaster).
type Broadcaster interface {
	Broadcast(message domain.Message, sender domain.Employee)
}

// NotificationQueue accepts follow-up push jobs (workers.Notifier).
type NotificationQueue interface {
	Enqueue(job workers.Job)
}

// ChatService owns the message lifecycle: validate, persist, then fan
// out. Persistence and fan-out are deliberately not one transaction;
// once a message is stored, create reports success regardless of any
// delivery outcome.
type ChatService struct {
	log         *slog.Logger
	messages    repositories.IMessageRepository
	groups      repositories.IGroupRepository
	directory   contract.EmployeeDirectory
	broadcaster Broadcaster
	notifier    NotificationQueue

	// One lock per group so broadcasts enter the fan-out in creation
	// order; (CreatedAt, ID) and delivery order stay aligned per group.
	groupLocks sync.Map
}

func NewChatService(log *slog.Logger, messages repositories.IMessageRepository,
	groups repositories.IGroupRepository, directory contract.EmployeeDirectory,
	broadcaster Broadcaster, notifier NotificationQueue) *ChatService {
	return &ChatService{
		log:         log,
		messages:    messages,
		groups:      groups,
		directory:   directory,
		broadcaster: broadcaster,
		notifier:    notifier,
	}
}

// CreateMessage validates, checks membership fresh, persists, then
// triggers both dispatchers. No partial write: every failure before the
// store call leaves the log untouched.
func (s *ChatService) CreateMessage(ctx context.Context, groupID int64, senderID, content string) (domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return domain.Message{}, errors.ErrEmptyContent
	}
	if err := s.requireMember(groupID, senderID); err != nil {
		return domain.Message{}, err
	}

	lock := s.lockFor(groupID)
	lock.Lock()
	message, err := s.messages.StoreMessage(domain.Message{
		GroupID:   groupID,
		SenderID:  senderID,
		Content:   content,
		Type:      domain.MessageTypeText,
		CreatedAt: time.Now().UTC(),
		ReadBy:    []string{},
	})
	if err != nil {
		lock.Unlock()
		return domain.Message{}, err
	}

	// Persisted: from here on the create is a success, whatever the
	// delivery paths do.
	sender := s.senderOf(senderID)
	s.broadcaster.Broadcast(message, sender)
	lock.Unlock()

	groupName := ""
	if group, err := s.groups.GetGroup(groupID); err == nil {
		groupName = group.Name
	} else {
		groupName = sender.Name
	}
	s.notifier.Enqueue(workers.Job{Message: message, GroupName: groupName})

	return message, nil
}

// ListMessages returns a page of the group's history in ascending
// (CreatedAt, ID) order, after a fresh membership check.
func (s *ChatService) ListMessages(groupID int64, userID string, limit, offset int) ([]domain.Message, error) {
	if err := s.requireMember(groupID, userID); err != nil {
		return nil, err
	}
	return s.messages.ListMessages(groupID, limit, offset)
}

func (s *ChatService) CountMessages(groupID int64, userID string) (int, error) {
	if err := s.requireMember(groupID, userID); err != nil {
		return 0, err
	}
	return s.messages.CountMessages(groupID)
}

// MarkRead acknowledges one message for userID. Idempotent; membership
// of the message's group is re-checked because it may have changed
// since delivery.
func (s *ChatService) MarkRead(messageID int64, userID string) error {
	message, err := s.messages.GetMessage(messageID)
	if err != nil {
		return err
	}
	if err := s.requireMember(message.GroupID, userID); err != nil {
		return err
	}
	return s.messages.MarkRead(messageID, userID)
}

// MarkGroupRead acknowledges the whole group for userID.
func (s *ChatService) MarkGroupRead(groupID int64, userID string) error {
	if err := s.requireMember(groupID, userID); err != nil {
		return err
	}
	return s.messages.MarkGroupRead(groupID, userID)
}

// UnreadCount derives the per-group unread count for userID.
func (s *ChatService) UnreadCount(groupID int64, userID string) (int, error) {
	if err := s.requireMember(groupID, userID); err != nil {
		return 0, err
	}
	return s.messages.CountUnread(groupID, userID)
}

// GlobalUnread sums unread counts over every group userID belongs to.
func (s *ChatService) GlobalUnread(userID string) (int, error) {
	groups, err := s.groups.ListGroups(userID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, groupID := range groups {
		count, err := s.messages.CountUnread(groupID, userID)
		if err != nil {
			return 0, err
		}
		total += count
	}
	return total, nil
}

// JoinGroups filters the requested group IDs down to the ones the
// caller is verified member of. Non-memberships are dropped silently;
// the response tells the client what it actually joined.
func (s *ChatService) JoinGroups(userID string, groupIDs []int64) ([]int64, error) {
	joined := make([]int64, 0, len(groupIDs))
	for _, groupID := range groupIDs {
		member, err := s.groups.IsMember(groupID, userID)
		if err != nil {
			return nil, err
		}
		if member {
			joined = append(joined, groupID)
		}
	}
	return joined, nil
}

func (s *ChatService) requireMember(groupID int64, userID string) error {
	member, err := s.groups.IsMember(groupID, userID)
	if err != nil {
		return err
	}
	if !member {
		return errors.ErrNotAMember
	}
	return nil
}

// senderOf resolves the display identity, falling back to the raw ID
// when the directory read model doesn't know the user yet.
func (s *ChatService) senderOf(userID string) domain.Employee {
	employee, err := s.directory.GetEmployee(userID)
	if err != nil {
		return domain.Employee{ID: userID, Name: userID}
	}
	return employee
}

func (s *ChatService) lockFor(groupID int64) *sync.Mutex {
	lock, _ := s.groupLocks.LoadOrStore(groupID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
