package memory

import "github.com/Avi18971911/spangrouper/pkg/store"

func NewTaskStores() *store.Stores {
	return store.NewStores(NewMemoryStore(), NewMemoryStore())
}
