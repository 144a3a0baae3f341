// Package events decorates a remote collection so every successful write is
// announced on a message broker.
package events

import (
	"context"

	"expenses/internal/amqp"
	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/remote"
)

// Publisher is the part of the AMQP client the decorator needs.
type Publisher interface {
	Publish(ctx context.Context, e *amqp.ChangeEvent) error
}

var _ remote.Collection = (*Collection)(nil)

// Collection forwards every call to the wrapped collection and publishes a
// change event after each successful write. Publishing is best effort: a
// broker failure is logged and never fails the write that already happened.
type Collection struct {
	remote.Collection
	pub    Publisher
	logger *log.Logger
}

func Wrap(inner remote.Collection, pub Publisher, logger *log.Logger) *Collection {
	return &Collection{
		Collection: inner,
		pub:        pub,
		logger:     log.OrDiscard(logger).WithComponent(log.ComponentRemote),
	}
}

func (c *Collection) Insert(ctx context.Context, coll string, doc remote.Document) (string, error) {
	id, err := c.Collection.Insert(ctx, coll, doc)
	if err != nil {
		return "", err
	}
	c.publish(ctx, amqp.ChangeCreated, coll, id, ownerOf(doc))
	return id, nil
}

func (c *Collection) Update(ctx context.Context, coll, id string, patch remote.Document) error {
	if err := c.Collection.Update(ctx, coll, id, patch); err != nil {
		return err
	}
	owner := ownerOf(patch)
	if owner == "" {
		if doc, err := c.Collection.Get(ctx, coll, id); err == nil {
			owner = ownerOf(doc)
		}
	}
	c.publish(ctx, amqp.ChangeUpdated, coll, id, owner)
	return nil
}

// Delete reads the owner first so consumers know whose data changed.
func (c *Collection) Delete(ctx context.Context, coll, id string) error {
	var owner string
	if doc, err := c.Collection.Get(ctx, coll, id); err == nil {
		owner = ownerOf(doc)
	}
	if err := c.Collection.Delete(ctx, coll, id); err != nil {
		return err
	}
	c.publish(ctx, amqp.ChangeDeleted, coll, id, owner)
	return nil
}

func (c *Collection) publish(ctx context.Context, typ amqp.ChangeType, coll, id, owner string) {
	if err := c.pub.Publish(ctx, amqp.NewChangeEvent(typ, coll, id, owner)); err != nil {
		c.logger.Warn("Change event not published",
			log.FieldOperation, log.OpPublish,
			log.FieldCollection, coll,
			log.FieldExpenseID, id,
			log.FieldError, err)
	}
}

func ownerOf(doc remote.Document) string {
	owner, _ := doc[core.FieldUserID].(string)
	return owner
}
