package schema

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fields-valid/pkg/validator/core"
)

type Audit struct {
	CreatedBy string `json:"created_by" valid:"len(1, 32)"`
}

type signupRequest struct {
	Audit
	Username string  `json:"username" valid:"len(3, 20), 'bad username'; regex('^[a-z]+$')"`
	Nickname *string `json:"nickname,omitempty" valid:"len(2, 8)"`
	Age      int     `json:"-"`
	secret   string  `valid:"len(1, 2)"`
}

func TestFromType(t *testing.T) {
	s, err := FromType(reflect.TypeOf(&signupRequest{}), "")
	require.NoError(t, err)

	assert.Equal(t, "signupRequest", s.Name)
	assert.Equal(t, reflect.TypeOf(signupRequest{}), s.GoType)
	require.Len(t, s.Fields, 4)

	assert.Equal(t, "CreatedBy", s.Fields[0].Name)
	assert.Equal(t, "created_by", s.Fields[0].JSONName)
	assert.Equal(t, []int{0, 0}, s.Fields[0].Index)
	assert.Equal(t, []string{"valid(len(1, 32))"}, s.Fields[0].Annotations)

	username := s.Fields[1]
	assert.Equal(t, "Username", username.Name)
	assert.Equal(t, "username", username.JSONName)
	assert.Equal(t, []int{1}, username.Index)
	assert.Equal(t, []string{"valid(len(3, 20), 'bad username')", "valid(regex('^[a-z]+$'))"}, username.Annotations)

	nickname := s.Fields[2]
	assert.Equal(t, "nickname", nickname.JSONName)
	assert.Equal(t, "*string", nickname.Type)
	assert.True(t, Resolve(&nickname).Optional)

	age := s.Fields[3]
	assert.Equal(t, "Age", age.JSONName)
	assert.Empty(t, age.Annotations)

	assert.True(t, s.Annotated())
	f, ok := s.Lookup("nickname")
	require.True(t, ok)
	assert.Equal(t, "Nickname", f.Name)
	_, ok = s.Lookup("secret")
	assert.False(t, ok)
}

func TestFromType_CustomTagKey(t *testing.T) {
	type order struct {
		Code string `check:"len(4)"`
	}
	s, err := FromType(reflect.TypeOf(order{}), "check")
	require.NoError(t, err)
	assert.Equal(t, []string{"valid(len(4))"}, s.Fields[0].Annotations)
}

func TestFromType_Errors(t *testing.T) {
	_, err := FromType(reflect.TypeOf(42), "")
	assert.True(t, errors.Is(err, core.ErrNotStruct))

	_, err = FromType(nil, "")
	assert.True(t, errors.Is(err, core.ErrNilRecord))

	type broken struct {
		Name string `valid:"len(1, 2"`
	}
	_, err = FromType(reflect.TypeOf(broken{}), "")
	require.Error(t, err)
	var se *core.SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "broken", se.Record)
	assert.Equal(t, "Name", se.Field)

	type badChar struct {
		Name string `valid:"len(1, 2) | email"`
	}
	_, err = FromType(reflect.TypeOf(badChar{}), "")
	assert.True(t, errors.Is(err, core.ErrStructural))
}

func TestTypeScope(t *testing.T) {
	outer := reflect.TypeOf(signupRequest{})
	type signupRequest struct {
		Username string `valid:"regex('^[0-9]+$')"`
	}
	local := reflect.TypeOf(signupRequest{})
	require.Equal(t, outer.String(), local.String(), "函数内的同名类型描述相同")

	assert.Equal(t, TypeScope(outer), TypeScope(outer))
	assert.Equal(t, TypeScope(local), TypeScope(local))
	assert.NotEqual(t, TypeScope(outer), TypeScope(local))

	a := reflect.TypeOf(struct {
		Code string `valid:"regex('^x$')"`
	}{})
	b := reflect.TypeOf(struct {
		Code string `valid:"regex('^y$')"`
	}{})
	assert.Empty(t, a.Name())
	assert.NotEqual(t, TypeScope(a), TypeScope(b))

	s, err := FromType(local, "")
	require.NoError(t, err)
	assert.Equal(t, TypeScope(local), s.Scope)
}

type shadowBase struct {
	Name string `valid:"len(1, 5)"`
}

type shadowOuter struct {
	shadowBase
	Name string `valid:"len(10, 20)"`
}

func TestSchema_LookupShadowed(t *testing.T) {
	s, err := FromType(reflect.TypeOf(shadowOuter{}), "")
	require.NoError(t, err)
	require.Len(t, s.Fields, 2)
	assert.Equal(t, []int{0, 0}, s.Fields[0].Index)
	assert.Equal(t, []int{1}, s.Fields[1].Index)

	f, ok := s.Lookup("Name")
	require.True(t, ok)
	assert.Equal(t, []int{1}, f.Index, "外层字段遮蔽嵌入字段")
}
