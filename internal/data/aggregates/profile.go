package aggregates

import (
	"context"
	"time"

	"github.com/saarzint/AI-Agents-Geoferry/internal/data/repos"
	types "github.com/saarzint/AI-Agents-Geoferry/internal/domain"
	domainagg "github.com/saarzint/AI-Agents-Geoferry/internal/domain/aggregates"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/dbctx"
)

type ProfileAggregateDeps struct {
	Base BaseDeps

	Profiles repos.UserProfileRepo
	Changes  repos.ProfileChangeRepo
}

type profileAggregate struct {
	deps ProfileAggregateDeps
}

func NewProfileAggregate(deps ProfileAggregateDeps) domainagg.ProfileAggregate {
	deps.Base = deps.Base.withDefaults()
	return &profileAggregate{deps: deps}
}

func (a *profileAggregate) Contract() domainagg.Contract {
	return domainagg.ProfileAggregateContract
}

func (a *profileAggregate) ApplyTrackedUpdate(ctx context.Context, in domainagg.TrackedUpdateInput) (domainagg.TrackedUpdateResult, error) {
	const op = "Profiles.TrackedUpdate.Apply"
	var out domainagg.TrackedUpdateResult
	if in.UserID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing user_id", nil)
	}
	if in.Diff == nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing diff func", nil)
	}
	if err := in.Patch.Validate(); err != nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, err.Error(), err)
	}
	if a.deps.Profiles == nil || a.deps.Changes == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "profile aggregate repos not configured", nil)
	}
	at := in.At.UTC()
	if in.At.IsZero() {
		at = time.Now().UTC()
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		before, err := a.deps.Profiles.GetByIDForUpdate(dbc.Ctx, dbc.Tx, in.UserID)
		if err != nil {
			return err
		}
		out.Before = before
		if in.Patch.Empty() {
			out.After = before
			out.Changes = []*types.ProfileChange{}
			return nil
		}

		next := in.Patch.ApplyTo(*before)
		if err := a.deps.Profiles.UpdateColumns(dbc.Ctx, dbc.Tx, &next, in.Patch.Columns()); err != nil {
			return err
		}
		after, err := a.deps.Profiles.GetByID(dbc.Ctx, dbc.Tx, in.UserID)
		if err != nil {
			return err
		}
		out.After = after

		changes := in.Diff(before, after, at)
		if len(changes) == 0 {
			out.Changes = []*types.ProfileChange{}
			return nil
		}
		created, err := a.deps.Changes.Create(dbc.Ctx, dbc.Tx, changes)
		if err != nil {
			return err
		}
		out.Changes = created
		return nil
	})
	if err != nil {
		return domainagg.TrackedUpdateResult{}, err
	}
	if len(out.Changes) > 0 {
		fields := make([]string, 0, len(out.Changes))
		for _, c := range out.Changes {
			fields = append(fields, c.FieldName)
		}
		a.deps.Base.Log.Info("tracked profile fields changed", "user_id", in.UserID, "fields", fields)
	}
	return out, nil
}
