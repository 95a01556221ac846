package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/buger/jsonparser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/jsondb/internal/events"
	"github.com/roach88/jsondb/internal/record"
	"github.com/roach88/jsondb/internal/testutil"
)

func TestSet_ReplacesSubtree(t *testing.T) {
	e := createTestEngine(t, Options{})

	mustSet(t, e, "/test", `{"name":"Hiram Chirino","props":{"city":"Tampa"}}`)
	mustSet(t, e, "/test", `{"name":"Joe"}`)

	assert.Equal(t, `{"name":"Joe"}`, mustGet(t, e, "/test", record.GetOptions{}))
	assert.Equal(t, 1, rowCount(t, e))
}

func TestSet_OverScalarAncestor(t *testing.T) {
	e := createTestEngine(t, Options{})

	mustSet(t, e, "/", `{"developer":"Joe","other":1}`)
	mustSet(t, e, "/developer/users/u1000", `{"name":"Joe"}`)

	assert.Equal(t, `{"developer":{"users":{"u1000":{"name":"Joe"}}},"other":1}`,
		mustGet(t, e, "/", record.GetOptions{}))

	// A scalar at the root is replaced by the object stored below it.
	mustSet(t, e, "/", `5`)
	mustSet(t, e, "/a", `1`)
	assert.Equal(t, `{"a":1}`, mustGet(t, e, "/", record.GetOptions{}))
}

func TestSet_RootReplacesEverything(t *testing.T) {
	e := createTestEngine(t, Options{})

	mustSet(t, e, "/users/u1", `{"name":"Joe"}`)
	mustSet(t, e, "/", `{"users":{"u2":{"name":"Ann"}}}`)

	assert.Equal(t, `{"users":{"u2":{"name":"Ann"}}}`, mustGet(t, e, "/", record.GetOptions{}))
	assert.Equal(t, "", mustGet(t, e, "/users/u1", record.GetOptions{}))
}

func TestSet_DataTypes(t *testing.T) {
	e := createTestEngine(t, Options{})
	doc := `{"users":{"u1000":{"name":"Joe","developer":false,"admin":true,"age":25,"gpa":3.52,"token":null}}}`
	mustSet(t, e, "/", doc)

	got := mustGet(t, e, "/", record.GetOptions{})
	assert.JSONEq(t, doc, got)

	name, err := jsonparser.GetString([]byte(got), "users", "u1000", "name")
	require.NoError(t, err)
	assert.Equal(t, "Joe", name)
	age, err := jsonparser.GetInt([]byte(got), "users", "u1000", "age")
	require.NoError(t, err)
	assert.Equal(t, int64(25), age)
	admin, err := jsonparser.GetBoolean([]byte(got), "users", "u1000", "admin")
	require.NoError(t, err)
	assert.True(t, admin)

	tests := []struct {
		path string
		want string
	}{
		{"/users/u1000/name", `"Joe"`},
		{"/users/u1000/developer", `false`},
		{"/users/u1000/admin", `true`},
		{"/users/u1000/age", `25`},
		{"/users/u1000/gpa", `3.52`},
		{"/users/u1000/token", `null`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, mustGet(t, e, tt.path, record.GetOptions{}))
		})
	}
}

func TestSet_Arrays(t *testing.T) {
	e := createTestEngine(t, Options{})

	mustSet(t, e, "/", `["hi",100]`)
	assert.Equal(t, `["hi",100]`, mustGet(t, e, "/", record.GetOptions{}))

	mustSet(t, e, "/", `{"data":["hi",100,"other"]}`)
	mustSet(t, e, "/data/1", `"update"`)
	assert.Equal(t, `{"data":["hi","update","other"]}`, mustGet(t, e, "/", record.GetOptions{}))

	mustSet(t, e, "/test", `{"test":[{"id":"foo"}]}`)
	assert.Equal(t, `{"test":[{"id":"foo"}]}`, mustGet(t, e, "/test", record.GetOptions{}))
}

func TestSet_LargeArraysKeepNumericOrder(t *testing.T) {
	e := createTestEngine(t, Options{})

	doc := `[1,2,3,4,5,6,7,8,9,10,11,12,13]`
	mustSet(t, e, "/numbers", doc)
	assert.Equal(t, doc, mustGet(t, e, "/numbers", record.GetOptions{}))

	assert.Equal(t, `11`, mustGet(t, e, "/numbers/10", record.GetOptions{}))
	mustSet(t, e, "/numbers/12", `"last"`)
	assert.Equal(t, `[1,2,3,4,5,6,7,8,9,10,11,12,"last"]`, mustGet(t, e, "/numbers", record.GetOptions{}))
}

func TestSet_EmptyContainers(t *testing.T) {
	e := createTestEngine(t, Options{})

	mustSet(t, e, "/c", `{"a":{},"b":[],"n":null}`)
	assert.Equal(t, `{"a":{},"b":[],"n":null}`, mustGet(t, e, "/c", record.GetOptions{}))
	assert.Equal(t, `{}`, mustGet(t, e, "/c/a", record.GetOptions{}))

	exists, err := e.Exists(context.Background(), "/c/b")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSet_InvalidKeyWritesNothing(t *testing.T) {
	ctx := context.Background()
	bus := testutil.NewEventRecorder()
	e := createTestEngine(t, Options{Bus: bus})

	mustSet(t, e, "/ok", `{"keep":1}`)
	bus.Reset()

	err := e.Set(ctx, "/a.b", strings.NewReader(`1`))
	require.Error(t, err)
	assert.True(t, record.IsInvalidKey(err))

	err = e.Set(ctx, "/ok", strings.NewReader(`{"first":1,"bad.key":2}`))
	require.Error(t, err)
	assert.True(t, record.IsInvalidKey(err))

	assert.Equal(t, `{"keep":1}`, mustGet(t, e, "/ok", record.GetOptions{}))
	assert.Empty(t, bus.Events())
}

func TestSet_MalformedDocumentWritesNothing(t *testing.T) {
	ctx := context.Background()
	e := createTestEngine(t, Options{})
	mustSet(t, e, "/ok", `{"keep":1}`)

	for _, doc := range []string{``, `{"a":`, `{"a":1} trailing`, `{"a":1,"a":2}`} {
		err := e.Set(ctx, "/ok", strings.NewReader(doc))
		require.Error(t, err, doc)
		assert.True(t, record.IsMalformedDocument(err), "doc %q: %v", doc, err)
	}
	assert.Equal(t, `{"keep":1}`, mustGet(t, e, "/ok", record.GetOptions{}))
}

func TestSet_BroadcastsAfterCommit(t *testing.T) {
	bus := testutil.NewEventRecorder()
	e := createTestEngine(t, Options{Bus: bus})

	mustSet(t, e, "/test", `{"name":"x"}`)
	mustSet(t, e, "/data/10", `1`)
	mustSet(t, e, "/", `{}`)

	assert.Equal(t, []events.Event{
		{Topic: events.TopicUpdated, Payload: "/test"},
		{Topic: events.TopicUpdated, Payload: "/data/10"},
		{Topic: events.TopicUpdated, Payload: "/"},
	}, bus.Events())
}

func TestSet_NotificationFailureIsSwallowed(t *testing.T) {
	bus := testutil.NewEventRecorder()
	bus.FailWith(errors.New("broker down"))
	e := createTestEngine(t, Options{Bus: bus})

	mustSet(t, e, "/test", `1`)
	assert.Equal(t, `1`, mustGet(t, e, "/test", record.GetOptions{}))
	assert.Len(t, bus.Events(), 1)
}

func TestSet_IndexedFieldsGetIndexColumn(t *testing.T) {
	e := createTestEngine(t, Options{Indexes: []record.Index{{Path: "/users", Field: "name"}}})
	mustSet(t, e, "/users", `{"u1":{"name":"Joe","age":3}}`)

	var idx string
	require.NoError(t, e.DB().QueryRow("SELECT idx FROM jsondb WHERE path = ?", "/users/u1/name/").Scan(&idx))
	assert.Equal(t, "/users/#name", idx)

	var n int
	require.NoError(t, e.DB().QueryRow("SELECT COUNT(*) FROM jsondb WHERE idx IS NULL").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSet_Batching(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"rows", Options{BatchRows: 3}},
		{"bytes", Options{BatchBytes: 16}},
		{"single", Options{BatchRows: 1}},
	}
	var b strings.Builder
	b.WriteString("{")
	for i := 0; i < 25; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `"k%02d":{"s":"value %d","v":%d}`, i, i, i)
	}
	b.WriteString("}")
	doc := b.String()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := createTestEngine(t, tt.opts)
			mustSet(t, e, "/batch", doc)
			assert.Equal(t, 50, rowCount(t, e))
			assert.Equal(t, doc, mustGet(t, e, "/batch", record.GetOptions{}))
		})
	}
}

func TestUpdate_IsolatesFields(t *testing.T) {
	bus := testutil.NewEventRecorder()
	e := createTestEngine(t, Options{Bus: bus})
	ctx := context.Background()

	mustSet(t, e, "/doc", `{"a":1,"b":{"x":1,"y":2},"c":3}`)
	bus.Reset()

	require.NoError(t, e.Update(ctx, "/doc", strings.NewReader(`{"b":{"z":9},"d":[1]}`)))
	assert.Equal(t, `{"a":1,"b":{"z":9},"c":3,"d":[1]}`, mustGet(t, e, "/doc", record.GetOptions{}))

	assert.Equal(t, []events.Event{
		{Topic: events.TopicUpdated, Payload: "/doc/b"},
		{Topic: events.TopicUpdated, Payload: "/doc/d"},
	}, bus.Events())
}

func TestUpdate_PathKeys(t *testing.T) {
	e := createTestEngine(t, Options{})
	ctx := context.Background()

	mustSet(t, e, "/test", `{"name":"Hiram","props":{"city":"Tampa","state":"FL"}}`)
	require.NoError(t, e.Update(ctx, "/test", strings.NewReader(`{"props/city":"Miami","tags/0":"a"}`)))

	assert.Equal(t, `{"name":"Hiram","props":{"city":"Miami","state":"FL"},"tags":["a"]}`,
		mustGet(t, e, "/test", record.GetOptions{}))
}

func TestUpdate_WithBatchingFlushesBeforeDelete(t *testing.T) {
	e := createTestEngine(t, Options{BatchRows: 100})
	ctx := context.Background()

	// The second field clears a subtree that the first field wrote into and
	// that is still pending in the batch.
	require.NoError(t, e.Update(ctx, "/", strings.NewReader(`{"a":{"b":1,"c":2},"a/b":3}`)))
	assert.Equal(t, `{"a":{"b":3,"c":2}}`, mustGet(t, e, "/", record.GetOptions{}))
}

func TestUpdate_Rejects(t *testing.T) {
	ctx := context.Background()
	bus := testutil.NewEventRecorder()
	e := createTestEngine(t, Options{Bus: bus})
	mustSet(t, e, "/doc", `{"a":1}`)
	bus.Reset()

	tests := []struct {
		name string
		body string
		code record.ErrorCode
	}{
		{"array body", `[1,2]`, record.ErrCodeMalformedDocument},
		{"scalar body", `"x"`, record.ErrCodeMalformedDocument},
		{"empty body", ``, record.ErrCodeMalformedDocument},
		{"truncated", `{"a":2`, record.ErrCodeMalformedDocument},
		{"trailing", `{"a":2} x`, record.ErrCodeMalformedDocument},
		{"duplicate field", `{"a":2,"a":3}`, record.ErrCodeMalformedDocument},
		{"duplicate path", `{"b/c":2,"/b/c/":3}`, record.ErrCodeMalformedDocument},
		{"slash key", `{"a":2,"/":3}`, record.ErrCodeInvalidKey},
		{"empty key", `{"":3}`, record.ErrCodeInvalidKey},
		{"bad key", `{"a":2,"x.y":3}`, record.ErrCodeInvalidKey},
		{"bad nested key", `{"a":{"$x":1}}`, record.ErrCodeInvalidKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.Update(ctx, "/doc", strings.NewReader(tt.body))
			require.Error(t, err)
			assert.Equal(t, tt.code, record.CodeOf(err), "%v", err)
			assert.Equal(t, `{"a":1}`, mustGet(t, e, "/doc", record.GetOptions{}))
		})
	}
	assert.Empty(t, bus.Events())

	err := e.Update(ctx, "/bad.path", strings.NewReader(`{"a":1}`))
	assert.True(t, record.IsInvalidKey(err))
}

func TestPush_OrderedKeys(t *testing.T) {
	ctx := context.Background()
	bus := testutil.NewEventRecorder()
	e := createTestEngine(t, Options{Bus: bus, Keys: testutil.NewSequenceGenerator("msg")})

	for _, name := range []string{"first", "second", "third"} {
		key, err := e.Push(ctx, "/test", strings.NewReader(`{"name":"`+name+`"}`))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(key, "msg-"), key)
	}

	got := mustGet(t, e, "/test", record.GetOptions{})
	var keys, names []string
	err := jsonparser.ObjectEach([]byte(got), func(key, value []byte, _ jsonparser.ValueType, _ int) error {
		keys = append(keys, string(key))
		name, err := jsonparser.GetString(value, "name")
		names = append(names, name)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"msg-000001", "msg-000002", "msg-000003"}, keys)
	assert.Equal(t, []string{"first", "second", "third"}, names)

	require.Len(t, bus.Events(), 3)
	assert.Equal(t, "/test/msg-000001", bus.Events()[0].Payload)
}

func TestPush_DefaultKeysSortInPushOrder(t *testing.T) {
	ctx := context.Background()
	e := createTestEngine(t, Options{})

	var pushed []string
	for i := 0; i < 20; i++ {
		key, err := e.Push(ctx, "/log", strings.NewReader(fmt.Sprint(i)))
		require.NoError(t, err)
		pushed = append(pushed, key)
	}

	got := mustGet(t, e, "/log", record.GetOptions{})
	var keys []string
	require.NoError(t, jsonparser.ObjectEach([]byte(got), func(key, _ []byte, _ jsonparser.ValueType, _ int) error {
		keys = append(keys, string(key))
		return nil
	}))
	assert.Equal(t, pushed, keys)
}

func TestPush_InvalidDocumentReturnsNoKey(t *testing.T) {
	e := createTestEngine(t, Options{Keys: testutil.NewFixedGenerator("k1")})
	key, err := e.Push(context.Background(), "/test", strings.NewReader(`{`))
	require.Error(t, err)
	assert.Empty(t, key)
	assert.Equal(t, 0, rowCount(t, e))
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	bus := testutil.NewEventRecorder()
	e := createTestEngine(t, Options{Bus: bus})
	mustSet(t, e, "/test", `{"name":"Hiram","props":{"city":"Tampa"}}`)
	bus.Reset()

	removed, err := e.Delete(ctx, "/badpath")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = e.Delete(ctx, "/test/props")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, `{"name":"Hiram"}`, mustGet(t, e, "/test", record.GetOptions{}))

	removed, err = e.Delete(ctx, "/test/props")
	require.NoError(t, err)
	assert.False(t, removed)

	assert.Equal(t, []events.Event{{Topic: events.TopicDeleted, Payload: "/test/props"}}, bus.Events())

	_, err = e.Delete(ctx, "/bad#path")
	assert.True(t, record.IsInvalidKey(err))
}

func TestDelete_Root(t *testing.T) {
	ctx := context.Background()
	e := createTestEngine(t, Options{})
	mustSet(t, e, "/a", `1`)
	mustSet(t, e, "/b", `{"c":2}`)

	removed, err := e.Delete(ctx, "/")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, 0, rowCount(t, e))
}

func TestDelete_ScalarAncestor(t *testing.T) {
	ctx := context.Background()
	e := createTestEngine(t, Options{})
	mustSet(t, e, "/a", `"scalar"`)

	// Deleting below a scalar removes the scalar, as a write there would.
	removed, err := e.Delete(ctx, "/a/b")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, 0, rowCount(t, e))
}
