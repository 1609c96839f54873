//go:generate go run go.uber.org/mock/mockgen -source=group.go -destination=../mocks/mock_group_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"directory-chat/domain"
	"directory-chat/errors"
)

type IGroupRepository interface {
	CreateGroup(group domain.Group) error
	GetGroup(groupID int64) (domain.Group, error)
	AddMember(groupID int64, userID string) error
	RemoveMember(groupID int64, userID string) error
	IsMember(groupID int64, userID string) (bool, error)
	ListMembers(groupID int64) ([]string, error)
	ListGroups(userID string) ([]int64, error)
}

// GroupRepository is the concrete membership store: group rows plus a
// forward (group -> user) and reverse (user -> group) membership index,
// so both directions are single prefix scans.
type GroupRepository struct {
	db *badger.DB
}

func NewGroupRepository(db *badger.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

func groupKey(groupID int64) []byte {
	return []byte(fmt.Sprintf("group:%019d", groupID))
}

func memberKey(groupID int64, userID string) []byte {
	return []byte(fmt.Sprintf("member:%019d:%s", groupID, userID))
}

func userGroupKey(userID string, groupID int64) []byte {
	return []byte(fmt.Sprintf("usergroup:%s:%019d", userID, groupID))
}

func (g *GroupRepository) CreateGroup(group domain.Group) error {
	value, err := json.Marshal(group)
	if err != nil {
		return err
	}
	return g.db.Update(func(txn *badger.Txn) error {
		key := groupKey(group.ID)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrGroupExists
		}
		return txn.Set(key, value)
	})
}

func (g *GroupRepository) GetGroup(groupID int64) (domain.Group, error) {
	var group domain.Group
	err := g.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(groupKey(groupID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return errors.ErrGroupNotFound
			}
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &group)
		})
	})
	if err != nil {
		return domain.Group{}, err
	}
	return group, nil
}

// AddMember writes both membership index rows. Adding an existing
// member is a no-op.
func (g *GroupRepository) AddMember(groupID int64, userID string) error {
	return g.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(groupKey(groupID)); err != nil {
			if err == badger.ErrKeyNotFound {
				return errors.ErrGroupNotFound
			}
			return err
		}
		if err := txn.Set(memberKey(groupID, userID), nil); err != nil {
			return err
		}
		return txn.Set(userGroupKey(userID, groupID), nil)
	})
}

func (g *GroupRepository) RemoveMember(groupID int64, userID string) error {
	return g.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(memberKey(groupID, userID)); err != nil {
			return err
		}
		return txn.Delete(userGroupKey(userID, groupID))
	})
}

func (g *GroupRepository) IsMember(groupID int64, userID string) (bool, error) {
	member := false
	err := g.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(memberKey(groupID, userID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		member = true
		return nil
	})
	return member, err
}

func (g *GroupRepository) ListMembers(groupID int64) ([]string, error) {
	prefixStr := fmt.Sprintf("member:%019d:", groupID)
	var members []string
	err := g.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		prefix := []byte(prefixStr)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			members = append(members, string(it.Item().Key()[len(prefixStr):]))
		}
		return nil
	})
	return members, err
}

func (g *GroupRepository) ListGroups(userID string) ([]int64, error) {
	prefixStr := fmt.Sprintf("usergroup:%s:", userID)
	var groups []int64
	err := g.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		prefix := []byte(prefixStr)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw := strings.TrimPrefix(string(it.Item().Key()), prefixStr)
			groupID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("corrupt usergroup key %q: %w", it.Item().Key(), err)
			}
			groups = append(groups, groupID)
		}
		return nil
	})
	return groups, err
}
