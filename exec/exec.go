// Copyright 2024 The Toasty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package exec walks a plan.Plan's Action graph against a driverapi.Driver,
// buffering each step's rows only long enough to bind the next step's
// per-row inputs. A plain linear Action chain executes
// step by step; a QueryPk step feeding an UpdateByKey/DeleteByKey with no
// static Key fans out into one follow-up Exec call per matched row,
// wrapped in a savepoint so a failure partway through rolls back the
// statement as a whole rather than leaving a partial write. An Assoc
// action never reaches the Driver at all: it runs its own child Plan and
// joins the results into the preceding rows in process.
package exec

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/toasty-db/toasty/driverapi"
	"github.com/toasty-db/toasty/op"
	"github.com/toasty-db/toasty/plan"
	"github.com/toasty-db/toasty/stmt"
	"github.com/toasty-db/toasty/toastyerr"
)

// Executor runs a Plan to completion against a single Driver.
type Executor struct {
	Driver driverapi.Driver

	// Log traces step execution, savepoint wraps, and fan-out row counts;
	// nil is treated as a discard logger.
	Log *logrus.Entry

	// nextSavepoint is the next savepoint id this executor will mint;
	// depth 0 is reserved for the caller's own interactive transaction,
	// so the executor's own wraps start at 1.
	nextSavepoint int
}

func NewExecutor(d driverapi.Driver) *Executor {
	return &Executor{Driver: d, nextSavepoint: 1}
}

func (e *Executor) log() *logrus.Entry {
	if e.Log != nil {
		return e.Log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// Run executes p's Action graph and returns the final step's Response.
func (e *Executor) Run(ctx context.Context, p *plan.Plan) (driverapi.Response, error) {
	e.log().Trace("exec: run plan")
	return e.runAction(ctx, p.Root)
}

func (e *Executor) runAction(ctx context.Context, a *plan.Action) (driverapi.Response, error) {
	if a == nil {
		return driverapi.ResponseCount{Count: 0}, nil
	}

	if a.Assoc != nil {
		return nil, toastyerr.ErrEvaluation.New("exec: Associate action reached with no preceding rows")
	}

	if sp, ok := a.Op.(*op.Savepoint); ok {
		return e.runSavepointed(ctx, sp, a.Then)
	}

	if scan, ok := a.Op.(*op.QueryPk); ok && a.Then != nil && needsFanOut(a.Then.Op) {
		return e.runScanFanOut(ctx, scan, a.Then)
	}

	resp, err := e.Driver.Exec(ctx, a.Op)
	if err != nil {
		return nil, err
	}
	if a.Then == nil {
		return resp, nil
	}
	if a.Then.Assoc != nil {
		return e.runAssociateChain(ctx, resp, a.Then)
	}
	return e.runAction(ctx, a.Then)
}

// runAssociateChain threads parentResp's rows through one or more
// consecutive Associate actions (one per Include entry the planner
// attached), returning the fully-joined rows. The planner only ever
// chains Associate actions to the end of a plan, so a non-Associate
// Action following the chain is a planner bug, not a runtime condition
// to recover from.
func (e *Executor) runAssociateChain(ctx context.Context, parentResp driverapi.Response, first *plan.Action) (driverapi.Response, error) {
	rows, err := bufferRows(ctx, parentResp)
	if err != nil {
		return nil, err
	}
	a := first
	for a != nil && a.Assoc != nil {
		rows, err = e.runAssociate(ctx, a.Assoc, rows)
		if err != nil {
			return nil, err
		}
		a = a.Then
	}
	if a != nil {
		return nil, toastyerr.ErrUnsupportedFeature.New("exec: action follows an Associate chain")
	}
	return driverapi.ResponseRows{Rows: driverapi.NewSliceStream(rows)}, nil
}

// runAssociate runs assoc.Child to completion, indexes its rows by
// ChildKey, and attaches matches into each parent row's Field slot by
// equality against ParentKey: one row for AssociateBelongsTo/HasOne (null
// if no match), a list for AssociateHasMany.
func (e *Executor) runAssociate(ctx context.Context, assoc *plan.Associate, parents []stmt.Value) ([]stmt.Value, error) {
	childResp, err := e.Run(ctx, assoc.Child)
	if err != nil {
		return nil, err
	}
	children, err := bufferRows(ctx, childResp)
	if err != nil {
		return nil, err
	}

	index := make(map[string][]stmt.Value, len(children))
	for _, c := range children {
		rec, ok := c.(stmt.ValueRecord)
		if !ok {
			return nil, toastyerr.ErrEvaluation.New("exec: associate child row is not a record")
		}
		key := stmt.HashKey(fieldValue(rec, assoc.ChildKey.Index))
		index[key] = append(index[key], c)
	}

	out := make([]stmt.Value, len(parents))
	for i, p := range parents {
		rec, ok := p.(stmt.ValueRecord)
		if !ok {
			return nil, toastyerr.ErrEvaluation.New("exec: associate parent row is not a record")
		}
		matches := index[stmt.HashKey(fieldValue(rec, assoc.ParentKey.Index))]

		fields := append([]stmt.Value(nil), rec.Fields...)
		if assoc.Kind == plan.AssociateHasMany {
			fields[assoc.Field.Index] = stmt.ValueList{Items: matches}
		} else if len(matches) == 0 {
			fields[assoc.Field.Index] = stmt.Null
		} else {
			fields[assoc.Field.Index] = matches[0]
		}
		out[i] = stmt.ValueRecord{Fields: fields}
	}
	e.log().Tracef("exec: associate field %v attached to %d parent rows", assoc.Field, len(out))
	return out, nil
}

func fieldValue(rec stmt.ValueRecord, idx int) stmt.Value {
	if idx < 0 || idx >= len(rec.Fields) {
		return stmt.Null
	}
	return rec.Fields[idx]
}

// bufferRows drains resp into a plain slice; Associate needs both sides
// fully materialized before it can index and join them.
func bufferRows(ctx context.Context, resp driverapi.Response) ([]stmt.Value, error) {
	rows, ok := resp.(driverapi.ResponseRows)
	if !ok {
		return nil, toastyerr.ErrEvaluation.New("exec: associate requires a row-producing response")
	}
	defer rows.Rows.Close()
	var out []stmt.Value
	for {
		v, ok, err := rows.Rows.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out, nil
}

func needsFanOut(o op.Operation) bool {
	switch x := o.(type) {
	case *op.UpdateByKey:
		return x.Key == nil
	case *op.DeleteByKey:
		return x.Key == nil
	default:
		return false
	}
}

// runSavepointed wraps the execution of then in SAVEPOINT/RELEASE, rolling
// back to the savepoint (rather than aborting the whole transaction) on
// failure, so callers can decide whether to retry.
func (e *Executor) runSavepointed(ctx context.Context, sp *op.Savepoint, then *plan.Action) (driverapi.Response, error) {
	id := sp.Id
	if id == 0 {
		id = e.nextSavepoint
		e.nextSavepoint++
	}
	e.log().Tracef("exec: savepoint %d", id)
	if _, err := e.Driver.Exec(ctx, &op.Savepoint{Id: id}); err != nil {
		return nil, toastyerr.ErrDriver.New(err.Error())
	}
	resp, err := e.runAction(ctx, then)
	if err != nil {
		e.log().Tracef("exec: rollback to savepoint %d: %v", id, err)
		if _, rbErr := e.Driver.Exec(ctx, &op.RollbackToSavepoint{Id: id}); rbErr != nil {
			return nil, toastyerr.ErrDriver.New(rbErr.Error())
		}
		return nil, err
	}
	if _, err := e.Driver.Exec(ctx, &op.ReleaseSavepoint{Id: id}); err != nil {
		return nil, toastyerr.ErrDriver.New(err.Error())
	}
	return resp, nil
}

// runScanFanOut executes scan, then re-runs follow's Operation once per
// matched row with the row's primary key substituted in as a static Key,
// accumulating an overall affected-row count.
func (e *Executor) runScanFanOut(ctx context.Context, scan *op.QueryPk, follow *plan.Action) (driverapi.Response, error) {
	resp, err := e.Driver.Exec(ctx, scan)
	if err != nil {
		return nil, err
	}
	rows, ok := resp.(driverapi.ResponseRows)
	if !ok {
		return nil, toastyerr.ErrEvaluation.New("scan fan-out requires a row-producing QueryPk")
	}
	defer rows.Rows.Close()

	var total int64
	for {
		v, ok, err := rows.Rows.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		bound := bindKey(follow.Op, v)
		sub, err := e.runAction(ctx, &plan.Action{Op: bound})
		if err != nil {
			return nil, err
		}
		if c, ok := sub.(driverapi.ResponseCount); ok {
			total += c.Count
		} else {
			total++
		}
	}
	e.log().Tracef("exec: scan fan-out affected %d rows", total)
	return driverapi.ResponseCount{Count: total}, nil
}

func bindKey(o op.Operation, key stmt.Value) op.Operation {
	switch x := o.(type) {
	case *op.UpdateByKey:
		c := *x
		c.Key = &stmt.ExprValue{Value: key}
		return &c
	case *op.DeleteByKey:
		c := *x
		c.Key = &stmt.ExprValue{Value: key}
		return &c
	default:
		return o
	}
}
