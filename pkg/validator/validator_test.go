package validator

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"fields-valid/pkg/validator/core"
	"fields-valid/pkg/validator/matcher"
	"fields-valid/pkg/validator/schema"
)

// TestUser 测试用户模型
type TestUser struct {
	ID       int64   `json:"id"`
	Username string  `json:"username" valid:"len(3, 20), '用户名长度为3-19个字符'; regex('^[a-zA-Z0-9]+$'), '用户名只能包含字母和数字'"`
	Email    string  `json:"email" valid:"email, '请输入有效的邮箱地址'"`
	Password string  `json:"password" valid:"len(6, 21), '密码长度为6-20个字符'"`
	Confirm  string  `json:"confirm" valid:"eq('#Password'), '两次密码不一致'"`
	Age      int     `json:"age" valid:"range(0, 151), '年龄不合法'"`
	Phone    *string `json:"phone,omitempty" valid:"len(11, 12), regex('^1[0-9]+$'), '手机号格式不正确'"`
}

// generatedUser 模拟生成代码：实现 FieldsValidate 时不走反射编译
type generatedUser struct {
	Name  string `valid:"len(100, 200)"`
	calls *int
}

func (g generatedUser) FieldsValidate() error {
	*g.calls++
	return nil
}

// brokenUser 注解错误的类型
type brokenUser struct {
	Age int `valid:"len(1, 3)"`
}

func newTestUser() *TestUser {
	return &TestUser{
		ID:       1,
		Username: "alice",
		Email:    "alice@example.com",
		Password: "secret1",
		Confirm:  "secret1",
		Age:      30,
	}
}

func strPtr(s string) *string { return &s }

func TestValidator_Validate(t *testing.T) {
	v := New(WithRegistry(matcher.NewRegistry()))

	tests := []struct {
		name    string
		mutate  func(u *TestUser)
		wantMsg string
	}{
		{name: "合法", mutate: func(*TestUser) {}},
		{name: "可选字段缺失", mutate: func(u *TestUser) { u.Phone = nil }},
		{name: "可选字段合法", mutate: func(u *TestUser) { u.Phone = strPtr("13800138000") }},
		{name: "可选字段不合法", mutate: func(u *TestUser) { u.Phone = strPtr("23800138000") }, wantMsg: "手机号格式不正确"},
		{name: "用户名太短", mutate: func(u *TestUser) { u.Username = "ab" }, wantMsg: "用户名长度为3-19个字符"},
		{name: "用户名格式", mutate: func(u *TestUser) { u.Username = "ali_ce" }, wantMsg: "用户名只能包含字母和数字"},
		{name: "邮箱", mutate: func(u *TestUser) { u.Email = "not-an-email" }, wantMsg: "请输入有效的邮箱地址"},
		{name: "密码不一致", mutate: func(u *TestUser) { u.Confirm = "secret2" }, wantMsg: "两次密码不一致"},
		{name: "年龄上界", mutate: func(u *TestUser) { u.Age = 151 }, wantMsg: "年龄不合法"},
		{
			name:    "多个字段不合法时返回声明在前的字段",
			mutate:  func(u *TestUser) { u.Age = -1; u.Email = "x" },
			wantMsg: "请输入有效的邮箱地址",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := newTestUser()
			tt.mutate(u)
			err := v.Validate(u)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			msg, ok := Message(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}

func TestValidator_ValidateValueAndPointer(t *testing.T) {
	v := New(WithRegistry(matcher.NewRegistry()))
	u := newTestUser()
	assert.NoError(t, v.Validate(u))
	assert.NoError(t, v.Validate(*u))

	compiled, failed := v.TypeCacheStats()
	assert.Equal(t, 1, compiled, "值和指针共享同一个缓存项")
	assert.Zero(t, failed)
}

func TestValidator_InvalidTargets(t *testing.T) {
	v := New(WithRegistry(matcher.NewRegistry()))

	assert.ErrorIs(t, v.Validate(nil), core.ErrNilRecord)
	assert.ErrorIs(t, v.Validate((*TestUser)(nil)), core.ErrNilRecord)
	assert.ErrorIs(t, v.Validate(42), core.ErrNotStruct)
	assert.ErrorIs(t, v.Validate([]TestUser{}), core.ErrNotStruct)
}

func TestValidator_GeneratedCodeFirst(t *testing.T) {
	v := New(WithRegistry(matcher.NewRegistry()))
	calls := 0
	require.NoError(t, v.Validate(generatedUser{calls: &calls}))
	assert.Equal(t, 1, calls)

	compiled, failed := v.TypeCacheStats()
	assert.Zero(t, compiled+failed, "生成代码不经过类型缓存")
}

func TestValidator_SchemaErrorCached(t *testing.T) {
	obs, logs := observer.New(zap.DebugLevel)
	v := New(WithRegistry(matcher.NewRegistry()), WithLogger(zap.New(obs)))

	err := v.Validate(brokenUser{Age: 1})
	require.Error(t, err)
	assert.True(t, IsSchemaError(err))
	assert.ErrorIs(t, err, core.ErrTypeMismatch)
	assert.False(t, IsViolation(err))

	again := v.Validate(&brokenUser{})
	assert.Same(t, err, again, "编译错误同样缓存")

	_, failed := v.TypeCacheStats()
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, logs.FilterMessage("schema compile failed").Len())
}

func TestValidator_ConcurrentFirstUse(t *testing.T) {
	reg := matcher.NewRegistry()
	v := New(WithRegistry(reg))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, v.Validate(newTestUser()))
		}()
	}
	wg.Wait()

	h, ok := reg.LookupScoped(schema.TypeScope(reflect.TypeOf(TestUser{})), matcher.Name("TestUser", "Username"))
	require.True(t, ok)
	assert.Equal(t, 1, h.Compilations())
	assert.Equal(t, 1, reg.Email().Compilations())
}

func TestValidator_ClearTypeCache(t *testing.T) {
	v := New(WithRegistry(matcher.NewRegistry()))
	require.NoError(t, v.Validate(newTestUser()))

	first, err := v.CompiledFor(reflect.TypeOf(TestUser{}))
	require.NoError(t, err)

	v.ClearTypeCache()
	compiled, failed := v.TypeCacheStats()
	assert.Zero(t, compiled+failed)

	second, err := v.CompiledFor(reflect.TypeOf(&TestUser{}))
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, first.Regexes(), second.Regexes())
}

func TestValidator_WithTagKey(t *testing.T) {
	type account struct {
		Name string `check:"len(2, 5), 'bad name'" valid:"len(100, 200)"`
	}
	v := New(WithRegistry(matcher.NewRegistry()), WithTagKey("check"))
	assert.NoError(t, v.Validate(account{Name: "bob"}))

	msg, ok := Message(v.Validate(account{Name: "b"}))
	require.True(t, ok)
	assert.Equal(t, "bad name", msg)
}

func TestRegister(t *testing.T) {
	require.NoError(t, Register[TestUser]())
	assert.NotPanics(t, MustRegister[TestUser])

	err := Register[brokenUser]()
	assert.True(t, IsSchemaError(err))
	assert.Panics(t, MustRegister[brokenUser])

	assert.ErrorIs(t, Register[int](), core.ErrNotStruct)
	assert.Same(t, Default(), Default())
	assert.Same(t, matcher.Default(), Default().Registry())

	assert.NoError(t, Validate(newTestUser()))
	ClearTypeCache()
}

func TestMessage(t *testing.T) {
	violation := core.NewViolation("User", "Email", "email", "邮箱格式不正确")

	msg, ok := Message(violation)
	assert.True(t, ok)
	assert.Equal(t, "邮箱格式不正确", msg)

	_, ok = Message(errors.New("boom"))
	assert.False(t, ok)
	_, ok = Message(nil)
	assert.False(t, ok)

	fe := ToFieldError(violation)
	require.NotNil(t, fe)
	assert.Equal(t, &FieldError{FieldName: "Email", JsonName: "email", Message: "邮箱格式不正确"}, fe)
	assert.Equal(t, "field 'email': 邮箱格式不正确", fe.String())
	assert.Nil(t, ToFieldError(errors.New("boom")))

	fe = ToFieldError(core.NewViolation("User", "Email", "", "x"))
	assert.Equal(t, "Email", fe.JsonName)
}
