//go:generate go run go.uber.org/mock/mockgen -source=push_subscription.go -destination=../mocks/mock_push_subscription_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"directory-chat/domain"
)

type IPushSubscriptionRepository interface {
	Save(sub domain.PushSubscription) error
	TokensForUser(userID string) ([]domain.PushSubscription, error)
	DeleteToken(token string) error
}

// PushSubscriptionRepository stores device tokens keyed by token with a
// per-user reverse index. Tokens are unique: re-registering a token
// rebinds it to the latest user.
type PushSubscriptionRepository struct {
	db *badger.DB
}

func NewPushSubscriptionRepository(db *badger.DB) *PushSubscriptionRepository {
	return &PushSubscriptionRepository{db: db}
}

func pushKey(token string) []byte {
	return []byte("push:" + token)
}

func pushUserKey(userID, token string) []byte {
	return []byte(fmt.Sprintf("pushuser:%s:%s", userID, token))
}

func (p *PushSubscriptionRepository) Save(sub domain.PushSubscription) error {
	value, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	return p.db.Update(func(txn *badger.Txn) error {
		// A token moving between users must not leave a stale reverse
		// index entry behind.
		if item, err := txn.Get(pushKey(sub.Token)); err == nil {
			var previous domain.PushSubscription
			err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &previous)
			})
			if err != nil {
				return err
			}
			if previous.UserID != sub.UserID {
				if err := txn.Delete(pushUserKey(previous.UserID, sub.Token)); err != nil {
					return err
				}
			}
		}
		if err := txn.Set(pushKey(sub.Token), value); err != nil {
			return err
		}
		return txn.Set(pushUserKey(sub.UserID, sub.Token), nil)
	})
}

func (p *PushSubscriptionRepository) TokensForUser(userID string) ([]domain.PushSubscription, error) {
	prefixStr := fmt.Sprintf("pushuser:%s:", userID)
	var subs []domain.PushSubscription
	err := p.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		prefix := []byte(prefixStr)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			token := string(it.Item().Key()[len(prefixStr):])
			item, err := txn.Get(pushKey(token))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					continue
				}
				return err
			}
			var sub domain.PushSubscription
			err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &sub)
			})
			if err != nil {
				return err
			}
			subs = append(subs, sub)
		}
		return nil
	})
	return subs, err
}

// DeleteToken removes a subscription and its reverse index entry.
// Deleting an unknown token succeeds: the self-healing cleanup and an
// explicit unsubscribe may race.
func (p *PushSubscriptionRepository) DeleteToken(token string) error {
	return p.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(pushKey(token))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		var sub domain.PushSubscription
		err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &sub)
		})
		if err != nil {
			return err
		}
		if err := txn.Delete(pushUserKey(sub.UserID, token)); err != nil {
			return err
		}
		return txn.Delete(pushKey(token))
	})
}
