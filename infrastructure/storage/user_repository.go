//go:generate go run go.uber.org/mock/mockgen -source=user_repository.go -destination=../../mocks/mock_user_repository.go -package=mocks
package storage

import (
	"chat-rooms/domain"
	"chat-rooms/errors"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type IUserRepository interface {
	CreateUser(ctx context.Context, email, username, passwordHash string) (domain.User, error)
	GetUser(ctx context.Context, id domain.UserID) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	UpdateUser(ctx context.Context, user domain.User) (domain.User, error)
	DeleteUser(ctx context.Context, id domain.UserID) error
}

type UserRepository struct {
	db       *badger.DB
	log      *slog.Logger
	attempts int
}

func NewUserRepository(db *badger.DB, log *slog.Logger, attempts int) *UserRepository {
	return &UserRepository{db: db, log: log, attempts: attempts}
}

var _ IUserRepository = (*UserRepository)(nil)

// CreateUser allocates the next user id and indexes the email. It fails
// with ErrUserAlreadyExists when the email is taken.
func (r *UserRepository) CreateUser(ctx context.Context, email, username, passwordHash string) (domain.User, error) {
	var user domain.User
	err := commitWithRetry(ctx, r.db, r.attempts, func(txn *badger.Txn) error {
		taken, err := exists(txn, userEmailKey(email))
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: %s", errors.ErrUserAlreadyExists, email)
		}

		id, err := nextCounter(txn, []byte(idSeqUsers))
		if err != nil {
			return err
		}
		user = domain.User{
			ID:           domain.UserID(id),
			Email:        email,
			Username:     username,
			PasswordHash: passwordHash,
			CreatedAt:    time.Now().UTC(),
		}
		if err = txn.Set(userKey(user.ID), encodeUser(user)); err != nil {
			return err
		}
		return txn.Set(userEmailKey(email), []byte(strconv.FormatInt(int64(user.ID), 10)))
	})
	if err != nil {
		return domain.User{}, err
	}
	r.log.Debug("User created", "user_id", user.ID)
	return user, nil
}

func (r *UserRepository) GetUser(ctx context.Context, id domain.UserID) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}
	var user domain.User
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		user, err = getUser(txn, id)
		return err
	})
	return user, err
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}
	var user domain.User
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userEmailKey(email))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", errors.ErrUserNotFound, email)
		}
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		id, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return fmt.Errorf("corrupted email index for %s: %w", email, err)
		}
		user, err = getUser(txn, domain.UserID(id))
		return err
	})
	return user, err
}

func (r *UserRepository) ListUsers(ctx context.Context) ([]domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var users []domain.User
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(userPrefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				user, err := decodeUser(val)
				if err != nil {
					return err
				}
				users = append(users, user)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return users, err
}

// UpdateUser replaces username, email and password hash of an existing
// user. Changing the email moves the unique index entry.
func (r *UserRepository) UpdateUser(ctx context.Context, user domain.User) (domain.User, error) {
	var updated domain.User
	err := commitWithRetry(ctx, r.db, r.attempts, func(txn *badger.Txn) error {
		current, err := getUser(txn, user.ID)
		if err != nil {
			return err
		}
		if user.Email != current.Email {
			taken, err := exists(txn, userEmailKey(user.Email))
			if err != nil {
				return err
			}
			if taken {
				return fmt.Errorf("%w: %s", errors.ErrUserAlreadyExists, user.Email)
			}
			if err = txn.Delete(userEmailKey(current.Email)); err != nil {
				return err
			}
			if err = txn.Set(userEmailKey(user.Email), []byte(strconv.FormatInt(int64(user.ID), 10))); err != nil {
				return err
			}
		}
		updated = current
		updated.Email = user.Email
		updated.Username = user.Username
		updated.PasswordHash = user.PasswordHash
		return txn.Set(userKey(user.ID), encodeUser(updated))
	})
	return updated, err
}

// DeleteUser removes the account, its email index and all of its
// memberships. Rooms the user created are kept.
func (r *UserRepository) DeleteUser(ctx context.Context, id domain.UserID) error {
	return commitWithRetry(ctx, r.db, r.attempts, func(txn *badger.Txn) error {
		user, err := getUser(txn, id)
		if err != nil {
			return err
		}
		for _, key := range keysWithPrefix(txn, userRoomPrefix(id)) {
			room, err := strconv.ParseInt(string(key[len(userRoomPrefix(id)):]), 10, 64)
			if err != nil {
				return fmt.Errorf("corrupted membership key %q: %w", key, err)
			}
			if err = txn.Delete(memberKey(domain.RoomID(room), id)); err != nil {
				return err
			}
			if err = txn.Delete(key); err != nil {
				return err
			}
		}
		if err = txn.Delete(userEmailKey(user.Email)); err != nil {
			return err
		}
		return txn.Delete(userKey(id))
	})
}

func getUser(txn *badger.Txn, id domain.UserID) (domain.User, error) {
	item, err := txn.Get(userKey(id))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, fmt.Errorf("%w: id %d", errors.ErrUserNotFound, id)
	}
	if err != nil {
		return domain.User{}, err
	}
	var user domain.User
	err = item.Value(func(val []byte) error {
		user, err = decodeUser(val)
		return err
	})
	return user, err
}
