package categories

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var _ categoriesRepo = (*repoMock)(nil)

type repoMock struct {
	mutex      sync.Mutex
	categories map[primitive.ObjectID]Category

	// injectable error for failure cases
	err error
}

func newRepoMock() *repoMock {
	return &repoMock{
		categories: make(map[primitive.ObjectID]Category),
	}
}

func (r *repoMock) All(_ context.Context) ([]Category, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.err != nil {
		return nil, r.err
	}

	all := make([]Category, 0, len(r.categories))
	for _, category := range r.categories {
		all = append(all, category)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Name < all[j].Name
	})
	return all, nil
}

func (r *repoMock) Add(_ context.Context, name string) (*Category, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.err != nil {
		return nil, r.err
	}

	for _, category := range r.categories {
		if category.Name == name {
			return nil, ErrCategoryExists
		}
	}

	category := Category{
		ID:   primitive.NewObjectID(),
		Name: name,
	}
	r.categories[category.ID] = category
	return &category, nil
}
