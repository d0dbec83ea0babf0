package categories

import (
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrCategoryExists = errors.New("category already exists")

const maxNameLength = 50

type Category struct {
	ID   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name string             `bson:"name" json:"name"`
}
