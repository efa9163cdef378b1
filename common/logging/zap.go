package logging

import (
	"time"

	"go.uber.org/zap/zapcore"
)

// objectEncoder and arrayEncoder flatten zap-style structured values
// (zapcore.ObjectMarshaler/ArrayMarshaler, as produced by handler code that
// wants to log a composite value) into the []interface{} keyval pairs our
// go-kit based Logger expects. Namespaces opened via OpenNamespace are
// flattened into underscore-joined key prefixes; nested objects/arrays are
// encoded independently and spliced in as a single field value.
type objectEncoder struct {
	fields    []interface{}
	namespace string
}

var _ zapcore.ObjectEncoder = (*objectEncoder)(nil)

func (e *objectEncoder) keyFor(key string) string {
	if e.namespace == "" {
		return key
	}
	return e.namespace + "_" + key
}

func (e *objectEncoder) OpenNamespace(key string) {
	if e.namespace == "" {
		e.namespace = key
		return
	}
	e.namespace = e.namespace + "_" + key
}

func (e *objectEncoder) AddArray(key string, marshaler zapcore.ArrayMarshaler) error {
	ae := &arrayEncoder{elems: []interface{}{}}
	err := marshaler.MarshalLogArray(ae)
	e.fields = append(e.fields, e.keyFor(key), ae.elems)
	return err
}

func (e *objectEncoder) AddObject(key string, marshaler zapcore.ObjectMarshaler) error {
	oe := &objectEncoder{}
	err := marshaler.MarshalLogObject(oe)
	e.fields = append(e.fields, e.keyFor(key), oe.fields)
	return err
}

func (e *objectEncoder) AddBinary(key string, value []byte)       { e.add(key, value) }
func (e *objectEncoder) AddByteString(key string, value []byte)   { e.add(key, string(value)) }
func (e *objectEncoder) AddBool(key string, value bool)           { e.add(key, value) }
func (e *objectEncoder) AddComplex128(key string, value complex128) { e.add(key, value) }
func (e *objectEncoder) AddComplex64(key string, value complex64) { e.add(key, value) }
func (e *objectEncoder) AddDuration(key string, value time.Duration) { e.add(key, value) }
func (e *objectEncoder) AddFloat64(key string, value float64)     { e.add(key, value) }
func (e *objectEncoder) AddFloat32(key string, value float32)     { e.add(key, value) }
func (e *objectEncoder) AddInt(key string, value int)             { e.add(key, value) }
func (e *objectEncoder) AddInt64(key string, value int64)         { e.add(key, value) }
func (e *objectEncoder) AddInt32(key string, value int32)         { e.add(key, value) }
func (e *objectEncoder) AddInt16(key string, value int16)         { e.add(key, value) }
func (e *objectEncoder) AddInt8(key string, value int8)           { e.add(key, value) }
func (e *objectEncoder) AddString(key, value string)              { e.add(key, value) }
func (e *objectEncoder) AddTime(key string, value time.Time)      { e.add(key, value) }
func (e *objectEncoder) AddUint(key string, value uint)           { e.add(key, value) }
func (e *objectEncoder) AddUint64(key string, value uint64)       { e.add(key, value) }
func (e *objectEncoder) AddUint32(key string, value uint32)       { e.add(key, value) }
func (e *objectEncoder) AddUint16(key string, value uint16)       { e.add(key, value) }
func (e *objectEncoder) AddUint8(key string, value uint8)         { e.add(key, value) }
func (e *objectEncoder) AddUintptr(key string, value uintptr)     { e.add(key, value) }

func (e *objectEncoder) AddReflected(key string, value interface{}) error {
	e.add(key, value)
	return nil
}

func (e *objectEncoder) add(key string, value interface{}) {
	e.fields = append(e.fields, e.keyFor(key), value)
}

type arrayEncoder struct {
	elems []interface{}
}

var _ zapcore.ArrayEncoder = (*arrayEncoder)(nil)

func (a *arrayEncoder) AppendArray(marshaler zapcore.ArrayMarshaler) error {
	sub := &arrayEncoder{}
	err := marshaler.MarshalLogArray(sub)
	a.elems = append(a.elems, sub.elems)
	return err
}

func (a *arrayEncoder) AppendObject(marshaler zapcore.ObjectMarshaler) error {
	oe := &objectEncoder{}
	err := marshaler.MarshalLogObject(oe)
	a.elems = append(a.elems, oe.fields)
	return err
}

func (a *arrayEncoder) AppendReflected(value interface{}) error {
	a.elems = append(a.elems, value)
	return nil
}

func (a *arrayEncoder) AppendBool(v bool)             { a.elems = append(a.elems, v) }
func (a *arrayEncoder) AppendByteString(v []byte)     { a.elems = append(a.elems, string(v)) }
func (a *arrayEncoder) AppendComplex128(v complex128) { a.elems = append(a.elems, v) }
func (a *arrayEncoder) AppendComplex64(v complex64)   { a.elems = append(a.elems, v) }
func (a *arrayEncoder) AppendDuration(v time.Duration) { a.elems = append(a.elems, v) }
func (a *arrayEncoder) AppendFloat64(v float64)       { a.elems = append(a.elems, v) }
func (a *arrayEncoder) AppendFloat32(v float32)       { a.elems = append(a.elems, v) }
func (a *arrayEncoder) AppendInt(v int)               { a.elems = append(a.elems, v) }
func (a *arrayEncoder) AppendInt64(v int64)           { a.elems = append(a.elems, v) }
func (a *arrayEncoder) AppendInt32(v int32)           { a.elems = append(a.elems, v) }
func (a *arrayEncoder) AppendInt16(v int16)           { a.elems = append(a.elems, v) }
func (a *arrayEncoder) AppendInt8(v int8)             { a.elems = append(a.elems, v) }
func (a *arrayEncoder) AppendString(v string)         { a.elems = append(a.elems, v) }
func (a *arrayEncoder) AppendTime(v time.Time)        { a.elems = append(a.elems, v) }
func (a *arrayEncoder) AppendUint(v uint)             { a.elems = append(a.elems, v) }
func (a *arrayEncoder) AppendUint64(v uint64)         { a.elems = append(a.elems, v) }
func (a *arrayEncoder) AppendUint32(v uint32)         { a.elems = append(a.elems, v) }
func (a *arrayEncoder) AppendUint16(v uint16)         { a.elems = append(a.elems, v) }
func (a *arrayEncoder) AppendUint8(v uint8)           { a.elems = append(a.elems, v) }
func (a *arrayEncoder) AppendUintptr(v uintptr)       { a.elems = append(a.elems, v) }

// ObjectFields flattens a zapcore.ObjectMarshaler into a single "name",
// fields keyval pair suitable for splicing into a Logger call, e.g.:
//
//	logger.Debug("job metrics", logging.ObjectFields("metrics", m)...)
func ObjectFields(name string, obj zapcore.ObjectMarshaler) []interface{} {
	oe := &objectEncoder{}
	_ = obj.MarshalLogObject(oe)
	return []interface{}{name, oe.fields}
}
