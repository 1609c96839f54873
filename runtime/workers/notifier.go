package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"directory-chat/contract"
	"directory-chat/domain"
	cerrors "directory-chat/errors"
	"directory-chat/push"
)

// Job is one persisted message awaiting its offline fallback fan-out.
// GroupName is resolved at enqueue time so the worker doesn't need the
// group row once the message is durable.
type Job struct {
	Message   domain.Message
	GroupName string
}

// Notifier is the notification fallback dispatcher. It runs after
// persistence, decoupled from the create call and from the live
// broadcast: jobs arrive over a buffered channel and every failure is
// absorbed at this boundary. A recipient being online does not suppress
// the push.
type Notifier struct {
	log      *slog.Logger
	jobs     chan Job
	members  contract.MembershipStore
	subs     push.SubscriptionStore
	provider push.Provider
}

func NewNotifier(log *slog.Logger, members contract.MembershipStore,
	subs push.SubscriptionStore, provider push.Provider, bufferSize int) *Notifier {
	return &Notifier{
		log:      log,
		jobs:     make(chan Job, bufferSize),
		members:  members,
		subs:     subs,
		provider: provider,
	}
}

// Enqueue hands a follow-up job to the worker without blocking the
// message-creation caller. When the buffer is full the job is dropped:
// recipients still discover the message on their next history fetch.
func (n *Notifier) Enqueue(job Job) {
	select {
	case n.jobs <- job:
	default:
		n.log.Warn(fmt.Sprintf("Notification queue full, dropping job for group %d", job.Message.GroupID))
	}
}

func (n *Notifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			n.log.Debug("Context done, stopping notifier")
			return nil
		case job, ok := <-n.jobs:
			if !ok {
				return nil
			}
			n.dispatch(ctx, job)
		}
	}
}

// dispatch sends the push payload to every member's tokens, excluding
// the sender. Independent of online status by design: the client
// deduplicates against the live channel.
func (n *Notifier) dispatch(ctx context.Context, job Job) {
	message := job.Message
	members, err := n.members.ListMembers(message.GroupID)
	if err != nil {
		n.log.Error("Member resolution failed, skipping notifications",
			"group_id", message.GroupID, "error", err)
		return
	}

	title := job.GroupName
	if title == "" {
		title = message.SenderID
	}
	payload := push.Payload{
		Title: title,
		Body:  message.Content,
		Data: map[string]string{
			"type":     domain.EnvelopeNewMessage,
			"groupId":  strconv.FormatInt(message.GroupID, 10),
			"senderId": message.SenderID,
		},
	}

	for _, member := range members {
		if member == message.SenderID {
			continue
		}
		subs, err := n.subs.TokensForUser(member)
		if err != nil {
			n.log.Error("Token lookup failed", "user_id", member, "error", err)
			continue
		}
		for _, sub := range subs {
			n.send(ctx, sub, payload)
		}
	}
}

func (n *Notifier) send(ctx context.Context, sub domain.PushSubscription, payload push.Payload) {
	err := n.provider.Send(ctx, sub.Token, payload)
	if err == nil {
		return
	}
	if errors.Is(err, cerrors.ErrTokenUnregistered) {
		// Self-healing: the provider disowned this token, drop it.
		if delErr := n.subs.DeleteToken(sub.Token); delErr != nil {
			n.log.Error("Failed to delete unregistered token", "user_id", sub.UserID, "error", delErr)
			return
		}
		n.log.Info("Deleted unregistered push token", "user_id", sub.UserID)
		return
	}
	// Transient provider fault: logged and swallowed, no retry here.
	n.log.Warn("Push delivery failed", "user_id", sub.UserID, "error", err)
}
