package oscquery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTreeShape(t *testing.T) {
	methods := map[string]Method{
		"/avatar/parameters/Mood": {
			Address: "/avatar/parameters/Mood",
			Access:  AccessReadWrite,
			Type:    TypeFloat,
			Value:   float32(0.5),
		},
		"/chatbox/typing": {
			Address: "/chatbox/typing",
			Access:  AccessWrite,
			Type:    TypeBool,
		},
	}

	root := buildTree(methods)
	assert.Equal(t, "/", root.FullPath)
	assert.Equal(t, AccessNone, root.Access)

	avatar := root.Contents["avatar"]
	require.NotNil(t, avatar)
	assert.Equal(t, "/avatar", avatar.FullPath)
	assert.Equal(t, AccessNone, avatar.Access)

	mood := avatar.Contents["parameters"].Contents["Mood"]
	require.NotNil(t, mood)
	assert.Equal(t, "/avatar/parameters/Mood", mood.FullPath)
	assert.Equal(t, AccessReadWrite, mood.Access)
	assert.Equal(t, "f", mood.Type)
	assert.Equal(t, []any{float32(0.5)}, mood.Value)

	typing := root.Contents["chatbox"].Contents["typing"]
	require.NotNil(t, typing)
	assert.Equal(t, AccessWrite, typing.Access)
	assert.Empty(t, typing.Value)
}

// The avatar-change leaf must exist even when nothing registered it.
func TestBuildTreeAvatarChangeLeaf(t *testing.T) {
	root := buildTree(map[string]Method{})

	change := lookupNode(root, "/avatar/change")
	require.NotNil(t, change)
	assert.Equal(t, AccessWrite, change.Access)
	assert.Equal(t, "s", change.Type)
}

func TestBuildTreeAvatarChangeNotDuplicated(t *testing.T) {
	methods := map[string]Method{
		"/avatar/change": {
			Address: "/avatar/change",
			Access:  AccessReadWrite,
			Type:    TypeString,
		},
	}

	change := lookupNode(buildTree(methods), "/avatar/change")
	require.NotNil(t, change)
	assert.Equal(t, AccessReadWrite, change.Access)
}

func TestLookupNode(t *testing.T) {
	root := buildTree(map[string]Method{
		"/a/b/c": {Address: "/a/b/c", Access: AccessRead, Type: TypeInt},
	})

	assert.Equal(t, root, lookupNode(root, "/"))
	assert.NotNil(t, lookupNode(root, "/a/b"))
	assert.NotNil(t, lookupNode(root, "/a/b/c"))
	assert.Nil(t, lookupNode(root, "/a/x"))
	assert.Nil(t, lookupNode(root, "/a/b/c/d"))
}

func TestCoerceValue(t *testing.T) {
	v, err := coerceValue(TypeInt, 42)
	require.NoError(t, err)
	assert.Equal(t, int32(42), v)

	v, err = coerceValue(TypeFloat, 0.25)
	require.NoError(t, err)
	assert.Equal(t, float32(0.25), v)

	_, err = coerceValue(TypeBool, "yes")
	assert.ErrorIs(t, err, ErrValueType)

	_, err = coerceValue(TypeString, 1)
	assert.ErrorIs(t, err, ErrValueType)
}
