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

// Package memdriver is a BoltDB-backed reference Driver, used by the
// core's own test suite. BoltDB's sorted key iteration within a bucket is
// what makes QueryPk's scans cheap to implement without a real storage
// engine; a scan honours a Limit's count and does no cursor pagination.
package memdriver

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"

	"github.com/boltdb/bolt"
	opentracing "github.com/opentracing/opentracing-go"

	"github.com/toasty-db/toasty/capability"
	"github.com/toasty-db/toasty/driverapi"
	"github.com/toasty-db/toasty/ids"
	"github.com/toasty-db/toasty/op"
	"github.com/toasty-db/toasty/schema"
	"github.com/toasty-db/toasty/stmt"
	"github.com/toasty-db/toasty/toastyerr"
)

func init() {
	gob.Register(stmt.ValueNull{})
	gob.Register(stmt.ValueBool(false))
	gob.Register(stmt.ValueI8(0))
	gob.Register(stmt.ValueI16(0))
	gob.Register(stmt.ValueI32(0))
	gob.Register(stmt.ValueI64(0))
	gob.Register(stmt.ValueU8(0))
	gob.Register(stmt.ValueU16(0))
	gob.Register(stmt.ValueU32(0))
	gob.Register(stmt.ValueU64(0))
	gob.Register(stmt.ValueString(""))
	gob.Register(stmt.ValueBytes(nil))
	gob.Register(stmt.ValueUuid{})
	gob.Register(stmt.ValueId{})
	gob.Register(stmt.ValueEnum{})
	gob.Register(stmt.ValueRecord{})
	gob.Register(stmt.ValueSparseRecord{})
	gob.Register(stmt.ValueList{})
	gob.Register(stmt.ValueDecimal{})
	gob.Register(stmt.ValueDateTime{})
}

// Driver is an in-process Driver backed by a single BoltDB file, the one
// at the path given to Open. Every table becomes one bucket;
// rows are keyed by their gob-encoded primary key tuple, which BoltDB
// then keeps in byte-sorted order — adequate for QueryPk's scans because
// the key encoding is order-preserving for the fixed-width integer and
// padded-string primary keys the reference test schemas use.
type Driver struct {
	db     *bolt.DB
	schema *schema.Schema
	cap    capability.Capability
	tracer opentracing.Tracer
}

// Open opens (creating if necessary) a BoltDB file at path as a Driver.
func Open(path string, cap capability.Capability) (*Driver, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, toastyerr.ErrDriver.New(err.Error())
	}
	return &Driver{db: db, cap: cap, tracer: opentracing.GlobalTracer()}, nil
}

func (d *Driver) Close() error { return d.db.Close() }

func (d *Driver) Capability() capability.Capability { return d.cap }

func (d *Driver) RegisterSchema(ctx context.Context, s *schema.Schema) error {
	span, _ := opentracing.StartSpanFromContextWithTracer(ctx, d.tracer, "memdriver.RegisterSchema")
	defer span.Finish()

	d.schema = s
	return d.db.Update(func(tx *bolt.Tx) error {
		for _, t := range s.Tables {
			if _, err := tx.CreateBucketIfNotExists(bucketName(t.Id)); err != nil {
				return toastyerr.ErrDriver.New(err.Error())
			}
		}
		return nil
	})
}

func (d *Driver) ResetDB(ctx context.Context) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		for _, t := range d.schema.Tables {
			name := bucketName(t.Id)
			if tx.Bucket(name) != nil {
				if err := tx.DeleteBucket(name); err != nil {
					return err
				}
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
}

func bucketName(t ids.TableId) []byte {
	return []byte(fmt.Sprintf("table_%d", uint32(t)))
}

func (d *Driver) Exec(ctx context.Context, o op.Operation) (driverapi.Response, error) {
	span, ctx := opentracing.StartSpanFromContextWithTracer(ctx, d.tracer, fmt.Sprintf("memdriver.Exec.%T", o))
	defer span.Finish()

	switch x := o.(type) {
	case *op.GetByKey:
		return d.getByKey(x)
	case *op.QueryPk:
		return d.queryPk(x)
	case *op.FindPkByIndex:
		return d.findPkByIndex(x)
	case *op.Insert:
		return d.insert(x)
	case *op.UpdateByKey:
		return d.updateByKey(x)
	case *op.DeleteByKey:
		return d.deleteByKey(x)
	case *op.BatchWrite:
		return d.batchWrite(ctx, x)
	case *op.Savepoint, *op.ReleaseSavepoint, *op.RollbackToSavepoint,
		*op.TransactionStart, *op.TransactionCommit, *op.TransactionRollback:
		// BoltDB transactions are all-or-nothing per Update call; the
		// reference driver has no native nested-savepoint primitive, so
		// these are accepted as no-ops: a rollback does not undo writes
		// earlier operations have already committed.
		return driverapi.ResponseCount{Count: 0}, nil
	default:
		return nil, toastyerr.ErrUnsupportedFeature.New(fmt.Sprintf("memdriver: operation %T", o))
	}
}

// encodeKey gob-encodes v through a pointer to its interface value (rather
// than the concrete value directly), which is what tells gob to write the
// concrete type name on the wire so decodeRow can reconstruct the right
// Value variant on the way back out.
func encodeKey(v stmt.Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&v); err != nil {
		return nil, toastyerr.ErrDriver.New(err.Error())
	}
	return buf.Bytes(), nil
}

func encodeRow(v stmt.Value) ([]byte, error) {
	return encodeKey(v)
}

func decodeRow(b []byte) (stmt.Value, error) {
	var v stmt.Value
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&v); err != nil {
		return nil, toastyerr.ErrDriver.New(err.Error())
	}
	return v, nil
}

func (d *Driver) getByKey(x *op.GetByKey) (driverapi.Response, error) {
	key, err := keyOf(x.Keys)
	if err != nil {
		return nil, err
	}
	encKey, err := encodeKey(key)
	if err != nil {
		return nil, err
	}
	var values []stmt.Value
	err = d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(x.Table))
		if b == nil {
			return nil
		}
		raw := b.Get(encKey)
		if raw == nil {
			return nil
		}
		row, err := decodeRow(raw)
		if err != nil {
			return err
		}
		projected, err := project(row, x.Returning)
		if err != nil {
			return err
		}
		values = append(values, projected)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return driverapi.ResponseRows{Rows: driverapi.NewSliceStream(values)}, nil
}

func keyOf(keys []stmt.Expr) (stmt.Value, error) {
	if len(keys) == 1 {
		return stmt.EvalConst(keys[0])
	}
	fields := make([]stmt.Value, len(keys))
	for i, k := range keys {
		v, err := stmt.EvalConst(k)
		if err != nil {
			return nil, err
		}
		fields[i] = v
	}
	return stmt.ValueRecord{Fields: fields}, nil
}

func project(row stmt.Value, returning stmt.Returning) (stmt.Value, error) {
	switch r := returning.(type) {
	case nil:
		return row, nil
	case stmt.ReturningChanges:
		return stmt.ValueI64(1), nil
	case stmt.ReturningExpr:
		return stmt.Eval(r.Expr, stmt.RowInput{Row: rowFields(row)})
	case stmt.ReturningValue:
		return r.Value, nil
	default:
		return row, nil
	}
}

func rowFields(row stmt.Value) []stmt.Value {
	rec, ok := row.(stmt.ValueRecord)
	if !ok {
		return []stmt.Value{row}
	}
	return rec.Fields
}

func (d *Driver) queryPk(x *op.QueryPk) (driverapi.Response, error) {
	var values []stmt.Value
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(x.Table))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			row, err := decodeRow(v)
			if err != nil {
				return err
			}
			if x.Filter != nil {
				ok, isNull, err := stmt.EvalBool(x.Filter, stmt.RowInput{Row: rowFields(row)})
				if err != nil {
					return err
				}
				if isNull || !ok {
					continue
				}
			}
			projected, err := project(row, x.Returning)
			if err != nil {
				return err
			}
			values = append(values, projected)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	values = applyLimit(values, x.Limit)
	return driverapi.ResponseRows{Rows: driverapi.NewSliceStream(values)}, nil
}

func applyLimit(values []stmt.Value, limit *stmt.Limit) []stmt.Value {
	if limit == nil {
		return values
	}
	count, err := stmt.EvalConst(limit.Count)
	if err != nil {
		return values
	}
	n, ok := count.(stmt.ValueI64)
	if !ok || int64(n) < 0 || int(n) >= len(values) {
		return values
	}
	return values[:n]
}

// findPkByIndex has no secondary index structures of its own in this
// reference driver; it falls back to a full scan filtered by the index
// predicate, which is correct (if not as cheap as a real secondary index)
// since memdriver's primary use is correctness testing, not performance.
func (d *Driver) findPkByIndex(x *op.FindPkByIndex) (driverapi.Response, error) {
	table, ok := d.schema.Tables[x.Index.Table]
	if !ok {
		return nil, toastyerr.ErrSchema.New("unknown table for index")
	}
	return d.queryPk(&op.QueryPk{Table: table.Id, Filter: x.Filter, Limit: x.Limit})
}

func (d *Driver) insert(x *op.Insert) (driverapi.Response, error) {
	var returned []stmt.Value
	err := d.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName(x.Table))
		if err != nil {
			return err
		}
		table := d.schema.Tables[x.Table]
		pk := table.PrimaryIndex()
		for _, rowExpr := range x.Rows {
			row, err := stmt.EvalConst(rowExpr)
			if err != nil {
				return err
			}
			key, err := primaryKeyOf(row, pk)
			if err != nil {
				return err
			}
			encKey, err := encodeKey(key)
			if err != nil {
				return err
			}
			encRow, err := encodeRow(row)
			if err != nil {
				return err
			}
			if err := b.Put(encKey, encRow); err != nil {
				return err
			}
			projected, err := project(row, x.Returning)
			if err != nil {
				return err
			}
			returned = append(returned, projected)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if _, ok := x.Returning.(stmt.ReturningChanges); ok {
		return driverapi.ResponseCount{Count: int64(len(x.Rows))}, nil
	}
	return driverapi.ResponseRows{Rows: driverapi.NewSliceStream(returned)}, nil
}

func primaryKeyOf(row stmt.Value, pk *schema.Index) (stmt.Value, error) {
	rec, ok := row.(stmt.ValueRecord)
	if !ok {
		return row, nil
	}
	if pk == nil || len(pk.Columns) == 0 {
		return row, nil
	}
	if len(pk.Columns) == 1 {
		idx := pk.Columns[0].Column.Index
		if idx < 0 || idx >= len(rec.Fields) {
			return nil, toastyerr.ErrSchema.New("primary key column out of range")
		}
		return rec.Fields[idx], nil
	}
	fields := make([]stmt.Value, len(pk.Columns))
	for i, col := range pk.Columns {
		fields[i] = rec.Fields[col.Column.Index]
	}
	return stmt.ValueRecord{Fields: fields}, nil
}

func (d *Driver) updateByKey(x *op.UpdateByKey) (driverapi.Response, error) {
	var returned []stmt.Value
	var count int64
	err := d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(x.Table))
		if b == nil {
			return nil
		}
		key, err := stmt.EvalConst(x.Key)
		if err != nil {
			return err
		}
		encKey, err := encodeKey(key)
		if err != nil {
			return err
		}
		raw := b.Get(encKey)
		if raw == nil {
			return toastyerr.ErrRecordNotFound.New()
		}
		row, err := decodeRow(raw)
		if err != nil {
			return err
		}
		if x.Precondition != nil {
			ok, isNull, err := stmt.EvalBool(x.Precondition, stmt.RowInput{Row: rowFields(row)})
			if err != nil {
				return err
			}
			if isNull || !ok {
				return toastyerr.ErrRecordNotFound.New()
			}
		}
		rec, ok := row.(stmt.ValueRecord)
		if !ok {
			return toastyerr.ErrDriver.New("stored row is not a record")
		}
		fields := append([]stmt.Value(nil), rec.Fields...)
		for _, a := range x.Assignments {
			if a.Column.Index < 0 || a.Column.Index >= len(fields) {
				return toastyerr.ErrSchema.New("assignment column out of range")
			}
			v, err := stmt.Eval(a.Expr, stmt.RowInput{Row: fields})
			if err != nil {
				return err
			}
			fields[a.Column.Index] = v
		}
		updated := stmt.ValueRecord{Fields: fields}
		encRow, err := encodeRow(updated)
		if err != nil {
			return err
		}
		if err := b.Put(encKey, encRow); err != nil {
			return err
		}
		projected, err := project(updated, x.Returning)
		if err != nil {
			return err
		}
		returned = append(returned, projected)
		count = 1
		return nil
	})
	if err != nil {
		return nil, err
	}
	if _, ok := x.Returning.(stmt.ReturningChanges); ok {
		return driverapi.ResponseCount{Count: count}, nil
	}
	return driverapi.ResponseRows{Rows: driverapi.NewSliceStream(returned)}, nil
}

func (d *Driver) deleteByKey(x *op.DeleteByKey) (driverapi.Response, error) {
	var returned []stmt.Value
	var count int64
	err := d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(x.Table))
		if b == nil {
			return nil
		}
		key, err := stmt.EvalConst(x.Key)
		if err != nil {
			return err
		}
		encKey, err := encodeKey(key)
		if err != nil {
			return err
		}
		raw := b.Get(encKey)
		if raw == nil {
			return nil
		}
		row, err := decodeRow(raw)
		if err != nil {
			return err
		}
		projected, err := project(row, x.Returning)
		if err != nil {
			return err
		}
		if err := b.Delete(encKey); err != nil {
			return err
		}
		returned = append(returned, projected)
		count = 1
		return nil
	})
	if err != nil {
		return nil, err
	}
	if _, ok := x.Returning.(stmt.ReturningChanges); ok {
		return driverapi.ResponseCount{Count: count}, nil
	}
	return driverapi.ResponseRows{Rows: driverapi.NewSliceStream(returned)}, nil
}

func (d *Driver) batchWrite(ctx context.Context, x *op.BatchWrite) (driverapi.Response, error) {
	var total int64
	for _, sub := range x.Operations {
		resp, err := d.Exec(ctx, sub)
		if err != nil {
			return nil, err
		}
		if c, ok := resp.(driverapi.ResponseCount); ok {
			total += c.Count
		} else {
			total++
		}
	}
	return driverapi.ResponseCount{Count: total}, nil
}
