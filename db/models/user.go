package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// User : Investor Model
type User struct {
	ID            int64        `json:"id" bun:",pk,autoincrement"`
	Email         string       `json:"email" bun:",unique,notnull" validate:"required,email"`
	Password      string       `json:"-" bun:",notnull"`
	TotalInvested int64        `json:"total_invested" bun:",notnull,default:0"`
	Deactivated   bool         `json:"deactivated" bun:",nullzero"`
	CreatedAt     time.Time    `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt     bun.NullTime `json:"updated_at"`
}

func (u *User) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.UpdateQuery:
		u.UpdatedAt = bun.NullTime{Time: time.Now()}
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*User)(nil)
