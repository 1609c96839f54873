package runtime

import (
	"fmt"
	"log/slog"

	"directory-chat/contract"
	"directory-chat/domain"
)

// Broadcaster fans a freshly persisted message out to every live
// connection of the group's members.
//
// It provides best-effort fan-out with no guarantees regarding
// delivery, durability, or retries. Members the registry doesn't know
// are simply offline; they catch up via history or push. Failures stay
// inside this component and never reach the message-creation caller.
type Broadcaster struct {
	log      *slog.Logger
	registry contract.IRegistry
	members  contract.MembershipStore
}

func NewBroadcaster(log *slog.Logger, registry contract.IRegistry, members contract.MembershipStore) *Broadcaster {
	return &Broadcaster{log: log, registry: registry, members: members}
}

// Broadcast resolves the group's current member list and sends the
// new_message envelope to each member's handles. Delivery order across
// distinct members is unspecified; per-connection order follows the
// call order because each handle's writer is FIFO.
func (b *Broadcaster) Broadcast(message domain.Message, sender domain.Employee) {
	envelope, err := domain.NewEnvelope(domain.EnvelopeNewMessage, domain.OutboundMessage{
		Message: message,
		Sender:  sender,
	})
	if err != nil {
		b.log.Error("failed to encode broadcast envelope",
			"group_id", message.GroupID, "message_id", message.ID, "error", err)
		return
	}

	members, err := b.members.ListMembers(message.GroupID)
	if err != nil {
		b.log.Error(fmt.Sprintf("Member resolution failed for group %d", message.GroupID), "error", err)
		return
	}

	for _, member := range members {
		b.registry.SendTo(member, envelope)
	}
}
