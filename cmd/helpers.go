package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/laraflow/laraflow/internal/errors"
	"github.com/laraflow/laraflow/internal/model"
	"github.com/laraflow/laraflow/internal/parser"
	"github.com/laraflow/laraflow/internal/repo"
)

// resolveNow returns the clock for a job run: ctx.Now, or the parsed --now
// value when given.
func resolveNow(flag string) (time.Time, error) {
	now := ctx.Now()
	if flag == "" {
		return now, nil
	}
	res := parser.ParseTimestamp(flag, now, ctx.Config.Location())
	if res.Error != nil {
		return time.Time{}, parser.AsUserError(res.Error)
	}
	return res.Time, nil
}

// parseEntity parses a TYPE argument.
func parseEntity(name string) (model.EntityType, error) {
	entity, err := model.ParseEntityType(name)
	if err != nil {
		return "", &errors.UserError{
			Message:    err.Error(),
			Suggestion: "Use one of: " + strings.Join(model.ValidEntityTypes(), ", ") + ".",
			Field:      "type",
			Value:      name,
			Cause:      err,
		}
	}
	return entity, nil
}

// notFound turns repo.ErrNotFound into a user error naming what was missing.
func notFound(err error, what, id string) error {
	if !repo.IsNotFound(err) {
		return err
	}
	sentinel, ok := notFoundErrors[what]
	if !ok {
		sentinel = errors.ErrRecordNotFound
	}
	return errors.NotFound(sentinel, id)
}

// notFoundErrors maps a record kind to its sentinel, which carries the
// suggestion shown to the user.
var notFoundErrors = map[string]error{
	"project": errors.ErrProjectNotFound,
	"list":    errors.ErrListNotFound,
	"task":    errors.ErrTaskNotFound,
	"user":    errors.ErrUserNotFound,
	"webhook": errors.ErrWebhookNotFound,
}

// trashState reports whether a record exists and whether it is trashed.
func trashState(c context.Context, entity model.EntityType, id string) (bool, error) {
	switch entity {
	case model.EntityTasks:
		t, err := ctx.Store.GetTask(c, id)
		if err != nil {
			return false, notFound(err, "task", id)
		}
		return t.IsTrashed(), nil
	case model.EntityLists:
		l, err := ctx.Store.GetList(c, id)
		if err != nil {
			return false, notFound(err, "list", id)
		}
		return l.IsTrashed(), nil
	case model.EntityProjects:
		p, err := ctx.Store.GetProject(c, id)
		if err != nil {
			return false, notFound(err, "project", id)
		}
		return p.IsTrashed(), nil
	}
	return false, repo.ErrUnknownEntity
}

// trashEntity soft-deletes one record after checking it exists.
func trashEntity(c context.Context, entity model.EntityType, id string) error {
	trashed, err := trashState(c, entity, id)
	if err != nil {
		return err
	}
	if trashed {
		return errors.NewUserErrorWithField("id", id,
			fmt.Sprintf("%s %s is already in the trash", entity.Singular(), id),
			fmt.Sprintf("Restore it with 'laraflow trash restore %s %s'.", entity, id))
	}
	if err := ctx.Store.TrashEntity(c, entity, id, ctx.Now()); err != nil {
		return err
	}
	return ctx.Printer.Done(fmt.Sprintf("Moved %s to trash", entity.Singular()), id)
}
