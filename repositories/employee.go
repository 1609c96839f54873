package repositories

import (
	"encoding/json"

	"github.com/dgraph-io/badger/v4"

	"directory-chat/domain"
	"directory-chat/errors"
)

// EmployeeRepository is the local read model of the external directory,
// synced by the (out-of-scope) import flow. The chat core only reads it
// to resolve display names.
type EmployeeRepository struct {
	db *badger.DB
}

func NewEmployeeRepository(db *badger.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

func employeeKey(userID string) []byte {
	return []byte("employee:" + userID)
}

func (e *EmployeeRepository) Put(employee domain.Employee) error {
	value, err := json.Marshal(employee)
	if err != nil {
		return err
	}
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(employeeKey(employee.ID), value)
	})
}

func (e *EmployeeRepository) GetEmployee(userID string) (domain.Employee, error) {
	var employee domain.Employee
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(employeeKey(userID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return errors.ErrEmployeeNotFound
			}
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &employee)
		})
	})
	if err != nil {
		return domain.Employee{}, err
	}
	return employee, nil
}
